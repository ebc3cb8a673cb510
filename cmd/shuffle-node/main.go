package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/hoshizora-net/mixshuffle/internal/shuffle"
	"github.com/hoshizora-net/mixshuffle/internal/transport"
)

func defaultConfig() shuffle.Config {
	return shuffle.Config{
		KeyBits: 2048,
		MaxLen:  1024,
	}
}

func main() {
	cfg := defaultConfig()

	flag.IntVar(&cfg.ID, "id", 0, "this node's id in [0, n)")
	flag.IntVar(&cfg.KeyBits, "key-bits", cfg.KeyBits, "RSA key length in bits")
	var roundID int64
	flag.Int64Var(&roundID, "round-id", 0, "agreed round id")
	flag.IntVar(&cfg.NNodes, "n-nodes", 0, "number of participating nodes")
	flag.StringVar(&cfg.MyAddr, "my-addr", "", "this node's listen address, host:port")
	flag.StringVar(&cfg.LeaderAddr, "leader-addr", "", "node 0's address")
	flag.StringVar(&cfg.PrevAddr, "prev-addr", "", "ring predecessor's address")
	flag.StringVar(&cfg.NextAddr, "next-addr", "", "ring successor's address")
	flag.IntVar(&cfg.MaxLen, "max-len", cfg.MaxLen, "fixed packaged message length in bytes")

	var msgFile string
	var outDir string
	var dialTimeout time.Duration
	flag.StringVar(&msgFile, "msg-file", "", "path to this node's plaintext message")
	flag.StringVar(&outDir, "out-dir", ".", "directory to write recovered plaintexts into")
	flag.DurationVar(&dialTimeout, "dial-timeout", 10*time.Second, "per-connection dial timeout")
	flag.Parse()

	if cfg.NNodes <= 0 || cfg.MyAddr == "" || cfg.LeaderAddr == "" || msgFile == "" {
		log.Fatal("missing required flags: -n-nodes, -my-addr, -leader-addr, -msg-file")
	}
	cfg.RoundID = uint64(roundID)
	cfg.Transport = transport.TCP{DialTimeout: dialTimeout}
	cfg.Logger = log.Default()

	msg, err := os.ReadFile(msgFile)
	if err != nil {
		log.Fatalf("reading msg file: %v", err)
	}

	node, err := shuffle.NewNode(cfg, msg)
	if err != nil {
		log.Fatalf("constructing node: %v", err)
	}

	outputs, err := node.Run()
	if err != nil {
		log.Fatalf("round failed: %v", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Fatalf("creating out-dir: %v", err)
	}
	var paths []string
	for i, pt := range outputs {
		path := filepath.Join(outDir, fmt.Sprintf("round-%d-output-%d.bin", cfg.RoundID, i))
		if err := os.WriteFile(path, pt, 0o644); err != nil {
			log.Fatalf("writing output %d: %v", i, err)
		}
		paths = append(paths, path)
	}
	for _, p := range paths {
		fmt.Println(p)
	}
}
