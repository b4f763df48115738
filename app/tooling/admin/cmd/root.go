// Package cmd contains the admin tool commands.
package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	keyName string
	keyPath string
)

const (
	keyExtension = ".ecdsa"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative tasks for a gossipchain node",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&keyName, "key", "k", "node.ecdsa", "Name of the node key file.")
	rootCmd.PersistentFlags().StringVarP(&keyPath, "key-path", "p", "zblock/", "Path to the directory with node keys.")
}

func getKeyPath() string {
	if !strings.HasSuffix(keyName, keyExtension) {
		keyName += keyExtension
	}
	return filepath.Join(keyPath, keyName)
}
