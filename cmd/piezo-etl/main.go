// Command piezo-etl pairs groundwater piezometers with their nearest weather
// station and prepares the joined daily series for analysis.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
