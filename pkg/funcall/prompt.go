package funcall

import (
	"fmt"
	"strings"

	"github.com/nxgate/nxgate/pkg/api"
)

// Marker is the literal first line of a reply that invokes a tool.
const Marker = "FC_USE"

const promptTemplate = `You can use the following tools to help solve the problem:

Tool list:

%s

When you decide that a tool is needed, you must follow this format exactly:

1. The first line of the reply must be:
FC_USE
with no leading or trailing whitespace, in uppercase.

2. Then, at the end of the reply, output the function call in this format (XML syntax):

<function_call>
  <tool>tool_name</tool>
  <args>
    <key1>value1</key1>
    <key2>value2</key2>
  </args>
</function_call>

Notes:
- Do not output FC_USE unless you are sure a tool is needed.
- You may call only one tool.
- Make sure the XML is valid and strictly follows the format above.
- Do not change the format.
- You may call a tool only once per turn.

Now get ready to follow these rules.`

// BuildToolPrompt renders the tool instruction prompt. It returns "" when
// tools is empty.
func BuildToolPrompt(tools []api.Tool) string {
	if len(tools) == 0 {
		return ""
	}

	entries := make([]string, 0, len(tools))
	for i, tool := range tools {
		fn := tool.Function
		params := make([]string, 0, len(fn.Parameters.Properties))
		for _, p := range fn.Parameters.Properties {
			params = append(params, fmt.Sprintf("%s (%s)", p.Name, p.Type))
		}
		paramList := strings.Join(params, ", ")
		if paramList == "" {
			paramList = "none"
		}
		entries = append(entries, fmt.Sprintf("%d. <tool name=%q description=%q>\n   Parameters: %s",
			i+1, fn.Name, fn.Description, paramList))
	}

	return fmt.Sprintf(promptTemplate, strings.Join(entries, "\n\n"))
}

// PrepareMessages prepends the tool prompt as a system message. It reports
// whether tool use was offered. The input slice is not modified.
func PrepareMessages(messages []api.ChatMessage, tools []api.Tool) ([]api.ChatMessage, bool) {
	prompt := BuildToolPrompt(tools)
	if prompt == "" {
		return messages, false
	}
	out := make([]api.ChatMessage, 0, len(messages)+1)
	out = append(out, api.ChatMessage{Role: api.RoleSystem, Content: prompt})
	out = append(out, messages...)
	return out, true
}
