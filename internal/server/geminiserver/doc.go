// Package geminiserver implements the Gemini request pipeline.
//
// A Server owns the TLS listener and runs one goroutine per accepted
// connection. Each connection carries exactly one request:
//
//	AwaitingLine -> Parsing -> Routing -> Handling -> Responding -> Closed
//
// Routes registered on the Router take precedence over files served by the
// StaticResolver. Handlers receive an explicit *Context holding the parsed
// URI, the captured route parameters and the response under construction.
// A handler that returns an error or panics yields "40 Temporary failure";
// the failure itself is only logged.
package geminiserver
