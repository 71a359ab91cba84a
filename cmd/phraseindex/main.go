// Command phraseindex builds the vocabulary FST and phrase filter of an OSM
// extract and queries finished builds.
package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/cmd/phraseindex/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
