// Command solji-seed replays a JSON scenario file against a running soljid
// instance: a funding list followed by an ordered instruction stream. Used to
// seed demo deployments and to smoke-test a fresh install.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/tidwall/gjson"

	"github.com/solji-labs/solji-program-sub000/pkg/logger"
)

func main() {
	var (
		server   = flag.String("server", "http://localhost:8080", "base URL of the soljid instance")
		scenario = flag.String("scenario", "scenario.json", "path to the scenario file")
		pause    = flag.Duration("pause", 0, "delay between instructions")
	)
	flag.Parse()
	log := logger.NewDefault("solji-seed")

	data, err := os.ReadFile(*scenario)
	if err != nil {
		log.WithError(err).Error("read scenario")
		os.Exit(1)
	}
	if !gjson.ValidBytes(data) {
		log.WithField("path", *scenario).Error("scenario is not valid JSON")
		os.Exit(1)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	failed := 0

	instructions := gjson.GetBytes(data, "instructions")
	if !instructions.IsArray() {
		log.Error("scenario has no instructions array")
		os.Exit(1)
	}
	instructions.ForEach(func(i, item gjson.Result) bool {
		name := item.Get("name").String()
		args := item.Get("args").Raw
		if name == "" {
			log.WithField("index", i.Int()).Warn("instruction without a name, skipping")
			return true
		}
		if args == "" {
			args = "{}"
		}

		if err := post(client, *server, name, args); err != nil {
			failed++
			log.WithError(err).WithField("instruction", name).Warn("instruction failed")
		} else {
			log.WithField("instruction", name).Debug("instruction applied")
		}
		if *pause > 0 {
			time.Sleep(*pause)
		}
		return true
	})

	total := len(instructions.Array())
	log.WithField("total", total).WithField("failed", failed).Info("scenario replay finished")
	if failed > 0 {
		os.Exit(1)
	}
}

func post(client *http.Client, server, name, args string) error {
	url := fmt.Sprintf("%s/v1/instructions/%s", server, name)
	resp, err := client.Post(url, "application/json", bytes.NewReader([]byte(args)))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}
