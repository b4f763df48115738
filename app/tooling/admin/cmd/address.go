package cmd

import (
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

// addressCmd represents the address command
var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the peer id for the node key",
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := crypto.LoadECDSA(getKeyPath())
		if err != nil {
			log.Fatal(err)
		}
		peerID := crypto.PubkeyToAddress(privateKey.PublicKey)
		fmt.Println(peerID)
	},
}

func init() {
	rootCmd.AddCommand(addressCmd)
}
