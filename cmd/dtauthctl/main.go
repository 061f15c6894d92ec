// The dtauthctl command provides a command-line interface for the DevTrack
// device authorization service.
package main

import "github.com/devtrackhq/devtrack-auth/internal/dtauthctl/cmd"

func main() {
	cmd.Execute()
}
