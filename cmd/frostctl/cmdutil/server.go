package cmdutil

// ServerAddr is the frost-server admin address ("host:port"), bound to the
// root command's persistent --server flag and read by every subcommand
// that dials a live server (connection ls/close). proxy inspect never
// reads it — inspecting a stringified reference is a purely local
// operation.
var ServerAddr = "127.0.0.1:9075"
