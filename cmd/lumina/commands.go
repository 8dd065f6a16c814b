package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/lumina/conversation"
	"github.com/poiesic/lumina/core"
	"github.com/poiesic/lumina/index"
	"github.com/poiesic/lumina/ingestion"
	"github.com/urfave/cli/v2"
)

func serveCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	srv, release, err := engine.NewServer(c.Context)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer release()

	addr := c.String("addr")
	if addr == "" {
		addr = engine.Config().Server.Addr
	}
	return srv.ListenAndServe(c.Context, addr)
}

func ingestCommand(c *cli.Context) error {
	urls := c.Args().Slice()
	if path := c.String("file"); path != "" {
		fromFile, err := readURLs(path)
		if err != nil {
			return err
		}
		urls = append(urls, fromFile...)
	}
	if len(urls) == 0 {
		return fmt.Errorf("at least one URL is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	pipeline, err := engine.NewPipeline(c.Context)
	if err != nil {
		return err
	}

	st := newStyles(os.Stdout)
	tenant := c.String("tenant")
	if len(urls) == 1 {
		result, err := pipeline.IngestWithObserver(c.Context, ingestion.Request{URL: urls[0], Tenant: tenant},
			func(stage ingestion.Stage) {
				if !stage.Terminal() {
					fmt.Fprintln(os.Stderr, st.Dim.Render(stage.String()+"..."))
				}
			})
		if err != nil {
			return err
		}
		printResult(os.Stdout, st, result)
		return nil
	}

	reqs := make([]ingestion.Request, len(urls))
	for i, u := range urls {
		reqs[i] = ingestion.Request{URL: u, Tenant: tenant}
	}
	failed := 0
	for i, outcome := range pipeline.IngestAll(c.Context, reqs) {
		if outcome.Err != nil {
			failed++
			fmt.Fprintf(os.Stdout, "%s %s: %v\n", st.Error.Render("failed"), urls[i], outcome.Err)
			continue
		}
		printResult(os.Stdout, st, outcome.Result)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(urls))
	}
	return nil
}

func printResult(w io.Writer, st styles, result *ingestion.Result) {
	fmt.Fprintf(w, "%s %s %s\n", st.Header.Render("ingested"), result.URL,
		st.Label.Render(fmt.Sprintf("(tenant %s, %d chunks, %d stored, %v)",
			result.Tenant, result.ChunksCreated, result.Stored, result.Duration.Round(time.Millisecond))))
}

// readURLs returns the non-blank lines of path. Lines starting with # are skipped.
func readURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}

func chatCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	orch, err := engine.NewOrchestrator(c.Context)
	if err != nil {
		return err
	}

	session := &chatSession{
		orch:   orch,
		tenant: c.String("tenant"),
		id:     c.String("session"),
		out:    os.Stdout,
		errOut: os.Stderr,
		st:     newStyles(os.Stdout),
	}
	if c.NArg() > 0 {
		return session.send(c.Context, strings.Join(c.Args().Slice(), " "))
	}
	return session.interactive(c.Context, os.Stdin, isTTY(os.Stdin))
}

// chatSession keeps the session ID across turns of one terminal conversation.
type chatSession struct {
	orch   *conversation.Orchestrator
	tenant string
	id     string
	out    io.Writer
	errOut io.Writer
	st     styles
}

func (s *chatSession) interactive(ctx context.Context, in io.Reader, prompt bool) error {
	scanner := bufio.NewScanner(in)
	for {
		if prompt {
			fmt.Fprint(s.out, s.st.Label.Render("you> "))
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// Failures were already reported through the error event.
		if err := s.send(ctx, line); err != nil && ctx.Err() != nil {
			return nil
		}
	}
}

// send streams one reply to out.
func (s *chatSession) send(ctx context.Context, message string) error {
	sink := func(_ context.Context, ev conversation.Event) error {
		switch ev := ev.(type) {
		case conversation.ChunkEvent:
			_, err := io.WriteString(s.out, ev.Content)
			return err
		case conversation.ErrorEvent:
			fmt.Fprintln(s.out)
			fmt.Fprintln(s.errOut, s.st.Error.Render(ev.Message))
		case conversation.DoneEvent:
			fmt.Fprintln(s.out)
		}
		return nil
	}

	reply, err := s.orch.Chat(ctx, conversation.Request{
		Message:   message,
		SessionID: s.id,
		Tenant:    s.tenant,
		Stream:    true,
	}, sink)
	if reply != nil {
		s.id = reply.SessionID
	}
	if err != nil {
		return err
	}
	if reply.Captured {
		fmt.Fprintln(s.errOut, s.st.Dim.Render("lead captured for session "+reply.SessionID))
	}
	return nil
}

// searchMonitor prints query progress to w.
type searchMonitor struct {
	st    styles
	w     io.Writer
	start time.Time
}

var _ index.QueryMonitor = (*searchMonitor)(nil)

func (m *searchMonitor) Start(q index.Query) {
	m.start = time.Now()
	fmt.Fprintln(m.w, m.st.Dim.Render(fmt.Sprintf("searching tenant %s for top %d", q.Tenant, q.TopK)))
}

func (m *searchMonitor) AfterScan(scanned, skipped int) {
	fmt.Fprintln(m.w, m.st.Dim.Render(fmt.Sprintf("scanned %d records, skipped %d", scanned, skipped)))
}

func (m *searchMonitor) Finish(results []*core.SearchResult) {
	fmt.Fprintln(m.w, m.st.Dim.Render(fmt.Sprintf("found %d hits in %v", len(results), time.Since(m.start).Round(time.Microsecond))))
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a query is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	retriever, err := engine.NewRetriever(c.Context)
	if err != nil {
		return err
	}
	st := newStyles(os.Stdout)
	monitor := &searchMonitor{st: newStyles(os.Stderr), w: os.Stderr}
	results, err := retriever.RetrieveWithMonitor(c.Context, c.String("tenant"), query, c.Int("top-k"), monitor)
	if err != nil {
		return err
	}

	for i, hit := range results {
		fmt.Printf("%s %s %s\n", st.Header.Render(fmt.Sprintf("%d.", i+1)),
			st.Score.Render(fmt.Sprintf("[%0.3f dense %0.3f sparse %0.3f]", hit.Score, hit.DenseScore, hit.SparseScore)),
			st.Label.Render(hit.Record.SourceURL))
		fmt.Printf("   %s\n", hit.Record.Text)
	}
	return nil
}

func leadsListCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	leads, err := engine.Leads().ListLeads(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	st := newStyles(os.Stdout)
	if len(leads) == 0 {
		fmt.Println(st.Dim.Render("no leads"))
		return nil
	}
	for _, l := range leads {
		fmt.Printf("%s %-30s %-10s %s\n", st.Header.Render(fmt.Sprintf("%6d", l.ID)), l.Email,
			string(l.Status), st.Label.Render(l.CreatedAt.Local().Format(time.DateTime)))
		if l.SourceSessionID != "" {
			fmt.Printf("       %s\n", st.Dim.Render("session "+l.SourceSessionID))
		}
	}
	return nil
}

func leadsAddCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	lead, err := engine.Leads().CreateLead(c.Context, &core.Lead{
		Name:    c.String("name"),
		Email:   c.String("email"),
		Company: c.String("company"),
		Phone:   c.String("phone"),
		Notes:   c.String("notes"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("created lead %d\n", lead.ID)
	return nil
}

func leadsStatusCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: lumina leads status ID STATUS")
	}
	id, err := strconv.ParseUint(c.Args().Get(0), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid lead id %q", c.Args().Get(0))
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	lead, err := engine.Leads().UpdateLeadStatus(c.Context, core.ID(id), core.LeadStatus(c.Args().Get(1)))
	if err != nil {
		return err
	}
	fmt.Printf("lead %d is now %s\n", lead.ID, lead.Status)
	return nil
}

func statsCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	hybrid, err := engine.Index(c.Context)
	if err != nil {
		return err
	}
	stats, err := hybrid.Stats(c.Context)
	if err != nil {
		return err
	}

	st := newStyles(os.Stdout)
	fmt.Printf("%s %d\n", st.Label.Render("dimension:"), stats.Dimension)
	fmt.Printf("%s %s\n", st.Label.Render("vocabulary:"), stats.VocabularyID)
	fmt.Printf("%s %d\n", st.Label.Render("records:"), stats.TotalRecords)
	tenants := make([]string, 0, len(stats.RecordsByTenant))
	for tenant := range stats.RecordsByTenant {
		tenants = append(tenants, tenant)
	}
	sort.Strings(tenants)
	for _, tenant := range tenants {
		fmt.Printf("  %-24s %d\n", tenant, stats.RecordsByTenant[tenant])
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	cfg := engine.Config()
	fmt.Fprintf(os.Stderr, "Database: %s\n", cfg.IndexPath())
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(os.Stderr)

	if _, err := engine.Reembed(c.Context, os.Stderr, c.StringSlice("tenant")...); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func resetCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	hybrid, err := engine.Index(c.Context)
	if err != nil {
		return err
	}
	tenant := c.String("tenant")
	n, err := hybrid.DeleteTenant(c.Context, tenant)
	if err != nil {
		return err
	}
	fmt.Println(newStyles(os.Stdout).Warning.Render(fmt.Sprintf("deleted %d records of tenant %s", n, tenant)))
	return nil
}

func configCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return cfg.Write(c.App.Writer)
}
