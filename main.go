package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "sitemap-mcp",
		Usage: "Crawl WordPress sites into editable site maps, served over MCP and HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the REST API and the MCP HTTP transport",
				Action: serve,
			},
			{
				Name:   "stdio",
				Usage:  "Serve the MCP tools on stdin/stdout",
				Action: stdio,
			},
			{
				Name:  "crawl",
				Usage: "Crawl a site once and print the reconciled pages as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Usage: "Project to store the result in", Value: "default"},
					&cli.StringFlag{Name: "url", Usage: "Site root URL", Required: true},
					&cli.BoolFlag{Name: "posts", Usage: "Include posts"},
					&cli.BoolFlag{Name: "no-pages", Usage: "Skip pages"},
					&cli.BoolFlag{Name: "markdown", Usage: "Convert page bodies to Markdown"},
					&cli.StringFlag{Name: "username", Usage: "WordPress user", Sources: cli.EnvVars("WP_USERNAME")},
					&cli.StringFlag{Name: "app-password", Usage: "WordPress application password", Sources: cli.EnvVars("WP_APP_PASSWORD")},
				},
				Action: crawl,
			},
		},
		Action: serve,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "application error: %v\n", err)
		os.Exit(1)
	}
}
