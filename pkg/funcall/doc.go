// Package funcall emulates OpenAI tool calling for upstreams that have none.
//
// Tool definitions are rendered into a system prompt that asks the model to
// start a tool-invoking reply with the [Marker] line and to end it with a
// block of the form
//
//	<function_call><tool>NAME</tool><args><key>value</key></args></function_call>
//
// [ParseFunctionCall] recovers that block from model output with a
// deliberately lenient regular-expression scan.
package funcall
