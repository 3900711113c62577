package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	annotator "annotator/internal/app"
	"annotator/internal/export"
)

const usage = `usage: annotator <command> [flags] [args]

commands:
  mcp                                   serve the annotation tools over MCP stdio
  render [-bg color] <path> <out.png> [width height]
                                        render a page's annotations to PNG
  export-pdf [-bg color] <path> <out.pdf>
                                        export a page's annotations to PDF
  pages                                 list pages with stored annotations
  approvals                             list MCP calls waiting for approval
  approve <id> | reject <id>            answer a waiting MCP call

Data lives in $ANNOTATOR_DATA_DIR (default ~/.local/share/annotator).
Set ANNOTATOR_MCP_APPROVAL=off to let the MCP server clear pages unasked.
`

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := annotator.DefaultConfig()
	if err != nil {
		log.Fatalf("annotator: %v", err)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "mcp":
		err = annotator.ServeMCP(cfg)
	case "render":
		err = runExport(cfg, cmd, args, true)
	case "export-pdf":
		err = runExport(cfg, cmd, args, false)
	case "pages":
		err = runPages(cfg)
	case "approvals":
		err = runApprovals(cfg)
	case "approve", "reject":
		err = runResolve(cfg, args, cmd == "approve")
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "annotator: unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("annotator %s: %v", cmd, err)
	}
}

// openApp starts an App without the background loops a one-shot command
// does not need.
func openApp(cfg annotator.Config) (*annotator.App, error) {
	cfg.FrameInterval = 0
	cfg.WatchInterval = 0
	cfg.Maintenance = ""
	a := annotator.New(cfg, nil)
	if err := a.Startup(context.Background()); err != nil {
		return nil, err
	}
	return a, nil
}

func runExport(cfg annotator.Config, cmd string, args []string, png bool) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	bg := fs.String("bg", "", "background color")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()

	opts := export.Options{Background: *bg, Smooth: true}
	switch {
	case png && len(rest) == 4:
		w, werr := strconv.Atoi(rest[2])
		h, herr := strconv.Atoi(rest[3])
		if werr != nil || herr != nil || w <= 0 || h <= 0 {
			return fmt.Errorf("width and height must be positive integers")
		}
		opts.Width, opts.Height = w, h
	case len(rest) == 2:
	default:
		return fmt.Errorf("wrong number of arguments\n\n%s", usage)
	}

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Shutdown(context.Background())

	var n int
	if png {
		n, err = a.RenderPNG(rest[0], rest[1], opts)
	} else {
		n, err = a.ExportPDF(rest[0], rest[1], opts)
	}
	if err != nil {
		return err
	}
	log.Printf("wrote %d stroke(s) of %s to %s", n, rest[0], rest[1])
	return nil
}

func runPages(cfg annotator.Config) error {
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Shutdown(context.Background())

	pages, err := a.Pages()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tSTROKES\tUPDATED\tKEY")
	for _, p := range pages {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", p.Path, p.Strokes, p.UpdatedAt.Local().Format(time.DateTime), p.PageKey)
	}
	return tw.Flush()
}

func runApprovals(cfg annotator.Config) error {
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Shutdown(context.Background())

	pending, err := a.PendingApprovals()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("no pending approvals")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTOOL\tREQUESTED\tDESCRIPTION")
	for _, p := range pending {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Tool, p.CreatedAt.Local().Format(time.DateTime), p.Description)
	}
	return tw.Flush()
}

func runResolve(cfg annotator.Config, args []string, approve bool) error {
	if len(args) != 1 {
		return fmt.Errorf("expected one approval id\n\n%s", usage)
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Shutdown(context.Background())

	if err := a.ResolveApproval(args[0], approve); err != nil {
		return err
	}
	verb := "rejected"
	if approve {
		verb = "approved"
	}
	log.Printf("%s %s", verb, args[0])
	return nil
}
