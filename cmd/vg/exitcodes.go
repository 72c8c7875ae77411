package main

// Exit codes.
const (
	ExitSuccess       = 0 // Success
	ExitError         = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError   = 2 // Configuration error (invalid config, unreachable database)
	ExitDataError     = 3 // Data error (malformed input, validation failure)
	ExitNotFound      = 4 // Query matched nothing
	ExitModelNotFound = 5 // Embedding model not available in Ollama
)
