package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyb70289/cmn-analyzer/iodrv"
	"github.com/cyb70289/cmn-analyzer/mesh"
)

var infoFlags struct {
	mesh   int
	output string
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Dump mesh info.",
	Long: "`info` probes the mesh topology, dumps it as JSON, and " +
		"measures the mesh clock frequency.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !cmd.Flags().Changed("mesh") {
			infoFlags.mesh = envInt("CMN_MESH", infoFlags.mesh)
		}

		// the frequency probe writes DTC registers
		dev, err := iodrv.Open(infoFlags.mesh, false)
		if err != nil {
			return err
		}
		defer dev.Close()

		m, err := mesh.Discover(dev)
		if err != nil {
			return err
		}
		log.Printf("cmn%d probed: %dx%d mesh, %d DTCs",
			infoFlags.mesh, m.XDim, m.YDim, len(m.DTCs))

		infoJSON, err := json.MarshalIndent(m.Info(), "", "  ")
		if err != nil {
			return err
		}
		if infoFlags.output != "" {
			if err := os.WriteFile(
				infoFlags.output, infoJSON, 0644); err != nil {
				return err
			}
			log.Printf("saved mesh info to %s", infoFlags.output)
		} else {
			fmt.Println(string(infoJSON))
		}

		fmt.Print("Probe CMN frequency... ")
		freq := m.MeasureFrequency(time.Second)
		fmt.Printf("%.3f GHz\n", freq/1e9)
		return nil
	},
}

func init() {
	infoCmd.Flags().IntVarP(&infoFlags.mesh, "mesh", "m", 0,
		"CMN mesh id")
	infoCmd.Flags().StringVarP(&infoFlags.output, "output", "o", "",
		"save mesh info to a JSON file")
	rootCmd.AddCommand(infoCmd)
}
