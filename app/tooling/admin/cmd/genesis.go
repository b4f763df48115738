package cmd

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/brendisurfs/gossipchain/foundation/blockchain/ledger"
	"github.com/spf13/cobra"
)

// genesisCmd represents the genesis command
var genesisCmd = &cobra.Command{
	Use:   "genesis",
	Short: "Print the genesis block every chain starts from",
	Run: func(cmd *cobra.Command, args []string) {
		data, err := json.MarshalIndent(ledger.Genesis(), "", "  ")
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(string(data))
	},
}

func init() {
	rootCmd.AddCommand(genesisCmd)
}
