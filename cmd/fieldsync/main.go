// Command fieldsync is the inspector's offline client. It captures job orders
// into a local badger queue and replays them when the API is reachable.
//
//	fieldsync refresh                    # pull holdings for the sticker cache
//	fieldsync queue --file job.json      # commit now, or queue when offline
//	fieldsync sync                       # replay the queue oldest first
//	fieldsync status                     # queue plus cached remaining stickers
//
// Every flag can also be set as FIELDSYNC_<FLAG>, e.g. FIELDSYNC_TOKEN.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	root, a := newRootCmd()
	err := root.Execute()
	if cerr := a.close(); cerr != nil {
		log.Error().Err(cerr).Msg("close queue")
	}
	if err != nil {
		os.Exit(1)
	}
}
