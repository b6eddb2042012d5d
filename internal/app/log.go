package app

import (
	"fmt"
	"os"
	"path"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/interviewdeck/clip-recorder/internal"
)

func configureLog() {
	log.SetOutput(os.Stdout)

	if isTty() {
		log.SetFormatter(&log.TextFormatter{
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				filename := path.Base(f.File)
				return fmt.Sprintf("%s:%d", filename, f.Line),
					fmt.Sprintf("> %s()", strings.Replace(f.Function, internal.ModName, ".", 1))
			},
			FullTimestamp: true,
		})
	} else {
		log.SetFormatter(&log.JSONFormatter{CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			return fmt.Sprintf("%s()", strings.Replace(f.Function, internal.ModName, ".", 1)),
				fmt.Sprintf("%s:%d", f.File, f.Line)
		}})
	}

	if flags.debug || cfg.Log.Level == "debug" {
		if log.GetLevel() != log.DebugLevel {
			log.SetReportCaller(true)
			log.SetLevel(log.DebugLevel)
			log.Debug("debug log enabled")
		}
	} else {
		if log.GetLevel() == log.DebugLevel {
			log.Debug("debug log disabled")
		}
		log.SetReportCaller(false)
		if lvl, err := log.ParseLevel(cfg.Log.Level); err == nil {
			log.SetLevel(lvl)
		} else {
			log.SetLevel(log.InfoLevel)
		}
	}
}

func isTty() bool {
	if fileInfo, _ := os.Stdout.Stat(); (fileInfo.Mode() & os.ModeCharDevice) != 0 {
		return true
	}
	return false
}
