// Command sandboxctl is the userland test harness around the sandbox
// policy engine: it loads one policy script, attaches it to a credential,
// and exposes the VERSION/SETSPEC/NLISTS control surface over HTTP so the
// engine can be driven and observed without a real kernel module.
package main

import "github.com/Sentinel-Gate/Sentinelgate/cmd/sandboxctl/cmd"

func main() {
	cmd.Execute()
}
