// Package llm provides a client for OpenAI-compatible chat completion
// APIs, tuned for calls that must return JSON.
//
// Every request sets response_format to json_object, and every response
// goes through a cleaning pass before the caller parses it: models wrap
// JSON in markdown fences, prepend prose, and leave raw control
// characters inside string values, all of which break encoding/json.
//
// Design decision: We talk to the HTTP API directly rather than pulling
// in a provider SDK because:
//  1. One endpoint is used (chat completions), nothing more
//  2. The same client works against OpenAI, vLLM, LM Studio, and LocalAI
//  3. The response cleaning has to happen on the raw content anyway
package llm
