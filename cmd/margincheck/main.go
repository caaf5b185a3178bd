// Command margincheck analyses the margins of a PDF from the command line.
package main

import (
    "bytes"
    "context"
    "flag"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "strings"
    "text/tabwriter"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/local/margincheck/internal/analysis"
    "github.com/local/margincheck/internal/export"
    "github.com/local/margincheck/internal/inspector"
    logpkg "github.com/local/margincheck/internal/logger"
    "github.com/local/margincheck/internal/overlay"
    "github.com/local/margincheck/internal/pdfdoc"
)

const (
    exitOK    = 0
    exitFail  = 1
    exitUsage = 2
)

type options struct {
    bleed     string
    threshold string
    scale     float64
    out       string
    format    string
    preview   bool
    level     string
    input     string
}

func main() {
    os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
    var o options
    fs := flag.NewFlagSet("margincheck", flag.ContinueOnError)
    fs.SetOutput(stderr)
    fs.StringVar(&o.bleed, "bleed", "3", "bleed size in mm")
    fs.StringVar(&o.threshold, "threshold", "5", "margin uniformity threshold in mm")
    fs.Float64Var(&o.scale, "scale", pdfdoc.DefaultScale, "render scale in pixels per point")
    fs.StringVar(&o.out, "out", ".", "directory for exports")
    fs.StringVar(&o.format, "format", "both", "export format: json, csv or both")
    fs.BoolVar(&o.preview, "preview", false, "write a PNG preview with margin lines per page")
    fs.StringVar(&o.level, "log-level", "warn", "log level")
    fs.Usage = func() {
        fmt.Fprintln(stderr, "usage: margincheck [flags] file.pdf")
        fs.PrintDefaults()
    }
    if err := fs.Parse(args); err != nil {
        return o, err
    }
    if fs.NArg() != 1 {
        fs.Usage()
        return o, fmt.Errorf("expected exactly one input file")
    }
    o.input = fs.Arg(0)
    if o.scale <= 0 {
        return o, fmt.Errorf("scale must be positive")
    }
    return o, nil
}

func formats(s string) ([]export.Format, error) {
    if s == "both" {
        return []export.Format{export.FormatJSON, export.FormatCSV}, nil
    }
    f, err := export.ParseFormat(s)
    if err != nil {
        return nil, err
    }
    return []export.Format{f}, nil
}

func run(args []string, stdout, stderr io.Writer) int {
    o, err := parseFlags(args, stderr)
    if err != nil {
        return exitUsage
    }
    fmts, err := formats(o.format)
    if err != nil {
        fmt.Fprintln(stderr, err)
        return exitUsage
    }

    _ = logpkg.Init(logpkg.Options{Service: "margincheck-cli", Level: o.level, Pretty: true, Console: stderr})
    defer logpkg.Close()

    var doc *pdfdoc.Document
    insp := inspector.New(func(b []byte) (inspector.Document, error) {
        d, err := pdfdoc.Load(b, pdfdoc.WithScale(o.scale))
        if err != nil {
            return nil, err
        }
        doc = d
        return d, nil
    }, analysis.DefaultSettings())
    defer insp.Close()

    for name, v := range map[string]string{inspector.SettingBleedSize: o.bleed, inspector.SettingMarginThreshold: o.threshold} {
        if err := insp.SetSettingString(name, v); err != nil {
            fmt.Fprintf(stderr, "invalid %s: %v\n", name, err)
            return exitUsage
        }
    }

    data, err := os.ReadFile(o.input)
    if err != nil {
        fmt.Fprintln(stderr, err)
        return exitFail
    }
    if err := insp.Load(data); err != nil {
        fmt.Fprintln(stderr, err)
        return exitFail
    }
    rep, err := insp.Analyze()
    if err != nil {
        fmt.Fprintln(stderr, err)
        return exitFail
    }

    printReport(stdout, rep)

    sink := export.LocalSink{Dir: o.out, Prefix: strings.TrimSuffix(filepath.Base(o.input), filepath.Ext(o.input))}
    now := time.Now()
    for _, f := range fmts {
        b, err := insp.Export(f, now)
        if err != nil {
            fmt.Fprintln(stderr, err)
            return exitFail
        }
        p, err := sink.Deliver(context.Background(), b, f.Filename(), f)
        if err != nil {
            fmt.Fprintln(stderr, err)
            return exitFail
        }
        fmt.Fprintf(stdout, "wrote %s\n", p)
    }

    if o.preview {
        if err := writePreviews(doc, rep, sink.Dir, sink.Prefix, stdout); err != nil {
            fmt.Fprintln(stderr, err)
            return exitFail
        }
    }
    return exitOK
}

func printReport(w io.Writer, rep *analysis.Report) {
    sum := analysis.Summarize(rep)
    tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
    fmt.Fprintln(tw, "Page\tSize (mm)\tTop\tBottom\tLeft\tRight\tTrim (mm)\tBleed\tConsistent")
    for i, p := range rep.Pages {
        bleed := "-"
        if edges := p.Bleed.Edges(); len(edges) > 0 {
            names := make([]string, len(edges))
            for k, e := range edges {
                names[k] = string(e)
            }
            bleed = strings.Join(names, ",")
        }
        if p.Blank() {
            bleed = "blank"
        }
        fmt.Fprintf(tw, "%d\t%s × %s\t%s\t%s\t%s\t%s\t%s × %s\t%s\t%t\n",
            p.PageNumber, p.Page.Width, p.Page.Height,
            p.Margins.Top, p.Margins.Bottom, p.Margins.Left, p.Margins.Right,
            p.TrimArea.Width, p.TrimArea.Height, bleed, sum.Consistent[i])
    }
    _ = tw.Flush()

    fmt.Fprintln(w)
    for _, e := range analysis.AllEdges {
        st := sum.Stats[e]
        fmt.Fprintf(w, "%-6s min %s  max %s  avg %s  uniform %t\n", e, st.Min, st.Max, st.Avg, sum.Uniformity.Get(e))
    }
    fmt.Fprintln(w, sum.Verdict(rep.Settings.MarginThreshold))
}

func writePreviews(doc *pdfdoc.Document, rep *analysis.Report, dir, prefix string, stdout io.Writer) error {
    if doc == nil {
        return fmt.Errorf("no document loaded")
    }
    for _, p := range rep.Pages {
        pg, err := doc.Page(p.PageNumber)
        if err != nil {
            return err
        }
        var buf bytes.Buffer
        if err := overlay.Encode(&buf, pg.Raster, p.Pixels); err != nil {
            return fmt.Errorf("encode preview for page %d: %w", p.PageNumber, err)
        }
        name := fmt.Sprintf("%s_page-%d-preview.png", prefix, p.PageNumber)
        path := filepath.Join(dir, name)
        if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
            return err
        }
        log.Debug().Int("page", p.PageNumber).Str("path", path).Msg("preview written")
        fmt.Fprintf(stdout, "wrote %s\n", path)
    }
    return nil
}
