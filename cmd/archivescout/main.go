package main

import (
	"archivescout/cmd/archivescout/commands"
	"archivescout/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
