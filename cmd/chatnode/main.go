// Command chatnode runs one chat-node process (spec.md §1's overview):
// load a YAML config, start C1-C9, and run until signaled to stop.
//
// Grounded on the teacher's examples/cluster/main.go (urfave/cli app with
// a single config flag) and nano.go's Listen (signal.Notify on the usual
// termination signals, then a graceful Shutdown before the process exits).
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/aclisp/chatnode/internal/config"
	"github.com/aclisp/chatnode/internal/log"
	"github.com/aclisp/chatnode/node"
)

func main() {
	app := cli.NewApp()
	app.Name = "chatnode"
	app.Usage = "run one chat cluster node"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config,c",
			Usage: "path to the node's YAML configuration file",
			Value: "config.yaml",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("chatnode: %v", err)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	n := node.New(cfg)
	if err := n.Startup(); err != nil {
		return err
	}
	log.Printf("chatnode %s: startup complete", cfg.Self.Name)

	sg := make(chan os.Signal, 1)
	signal.Notify(sg, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	s := <-sg
	log.Printf("chatnode %s: received signal %v, shutting down", cfg.Self.Name, s)

	n.Shutdown()
	log.Printf("chatnode %s: shutdown complete", cfg.Self.Name)
	return nil
}
