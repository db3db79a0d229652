package syncqueue

import (
	"bytes"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	os.Exit(m.Run())
}

func TestBadgerLogger_QuietBelowWarn(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	level := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	defer zerolog.SetGlobalLevel(level)

	badgerLogger{}.Infof("compaction %d done", 3)
	badgerLogger{}.Debugf("flushed memtable")
	assert.Empty(t, buf.String(), "info and debug stay at trace")

	badgerLogger{}.Warningf("value log %s is large", "000001.vlog")
	assert.Contains(t, buf.String(), "badger: value log 000001.vlog is large")
}
