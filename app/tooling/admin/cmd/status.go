package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"
)

var url string

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the replication status of a running node",
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := http.Get(fmt.Sprintf("%s/v1/status", url))
		if err != nil {
			log.Fatal(err)
		}
		defer resp.Body.Close()

		var status struct {
			PeerID           string `json:"peer_id"`
			Height           int    `json:"height"`
			KnownPeers       int    `json:"known_peers"`
			DifficultyPrefix string `json:"difficulty_prefix"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			log.Fatal(err)
		}

		fmt.Println("Peer:", status.PeerID)
		fmt.Println("Height:", status.Height)
		fmt.Println("Known peers:", status.KnownPeers)
		fmt.Println("Difficulty prefix:", status.DifficultyPrefix)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
}
