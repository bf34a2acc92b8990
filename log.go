package gograd

import "github.com/inconshreveable/log15"

var log = log15.New("module", "gograd")

func init() {
	log.SetHandler(log15.DiscardHandler())
}

// SetLogHandler routes the package's debug records (lazy expansions,
// materialization passes) to h.
func SetLogHandler(h log15.Handler) {
	log.SetHandler(h)
}
