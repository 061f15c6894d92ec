// Package cmd implements the dtauthctl CLI commands
package cmd

import (
	"crypto/tls"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devtrackhq/devtrack-auth/internal/dtauthctl/client"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthctl/config"
)

var (
	cfgFile string
	cfg     *config.Config
	debug   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dtauthctl",
	Short: "DevTrack device authorization control tool",
	Long: `dtauthctl is a command line tool for the DevTrack device authorization
service. It can run the device login flow, manage a user's authorized
devices, and trigger administrative cleanup.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dtauthctl/config.yaml)")
	rootCmd.PersistentFlags().String("server", "", "API server address")
	rootCmd.PersistentFlags().String("token", "", "Session token")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output")

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newDevicesCmd())
	rootCmd.AddCommand(newCleanupCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	context, err := cfg.GetCurrentContext()
	if err != nil {
		return
	}

	// Allow command line flags to override config file
	if server, _ := rootCmd.PersistentFlags().GetString("server"); server != "" {
		context.Server = server
	}
	if token, _ := rootCmd.PersistentFlags().GetString("token"); token != "" {
		context.Token = token
	}
}

// getClient builds an API client from the current context.
func getClient() (*client.Client, error) {
	context, err := cfg.GetCurrentContext()
	if err != nil {
		return nil, err
	}

	options := []client.ClientOption{}
	if context.Token != "" {
		options = append(options, client.WithToken(context.Token))
	}
	if context.InsecureSkipVerify {
		options = append(options, client.WithTLSConfig(&tls.Config{InsecureSkipVerify: true}))
	}

	return client.NewClient(context.Server, options...)
}
