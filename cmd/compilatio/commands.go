package main

import (
	"context"
	"fmt"
	"io"

	"github.com/hyperjump/compilatio/internal/cli"
	"github.com/hyperjump/compilatio/internal/compilatio"
	"github.com/hyperjump/compilatio/internal/models"
	"github.com/hyperjump/compilatio/internal/storage"
)

func runSubmit(args []string, out io.Writer) error {
	fs, o := newFlagSet("submit", "submit --cm N --user N <file>...", out)
	cm := fs.Int64("cm", 0, "course module id")
	userID := fs.Int64("user", 0, "submitting user id")
	if err := parseArgs(fs, args, 1); err != nil {
		return err
	}
	c, format, err := o.open()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := context.Background()
	for _, path := range fs.Args() {
		sub, err := c.Submissions.SubmitFile(ctx, path, *cm, *userID, nil)
		if sub != nil {
			if werr := cli.WriteSubmission(out, sub, format); werr != nil {
				return werr
			}
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func runStatus(args []string, out io.Writer) error {
	fs, o := newFlagSet("status", "status [flags] [record-id]", out)
	cm := fs.Int64("cm", 0, "filter by course module id")
	userID := fs.Int64("user", 0, "filter by user id")
	status := fs.String("status", "", "filter by status code, e.g. ANALYSE_COMPLETE")
	refresh := fs.Bool("refresh", false, "pull the remote state before printing (record-id only)")
	limit := fs.Int("limit", 50, "maximum number of records")
	offset := fs.Int("offset", 0, "records to skip")
	if err := parseArgs(fs, args, 0); err != nil {
		return err
	}
	c, format, err := o.open()
	if err != nil {
		return err
	}
	defer c.Close()
	ctx := context.Background()

	if fs.NArg() == 0 {
		subs, err := c.Storage.ListSubmissions(ctx, storage.Filter{CM: *cm, UserID: *userID, StatusCode: *status}, *offset, *limit)
		if err != nil {
			return err
		}
		return cli.WriteSubmissions(out, subs, format)
	}

	id, err := parseRecordID(fs.Arg(0))
	if err != nil {
		return err
	}
	var sub *models.Submission
	if *refresh {
		sub, err = c.Submissions.Refresh(ctx, id)
	} else {
		sub, err = c.Storage.GetSubmission(ctx, id)
	}
	if sub != nil {
		if werr := cli.WriteSubmission(out, sub, format); werr != nil {
			return werr
		}
	}
	return err
}

func runDocument(args []string, out io.Writer) error {
	fs, o := newFlagSet("document", "document <document-id>", out)
	if err := parseArgs(fs, args, 1); err != nil {
		return err
	}
	c, format, err := o.open()
	if err != nil {
		return err
	}
	defer c.Close()

	doc, err := c.Client.GetDoc(context.Background(), fs.Arg(0))
	if err != nil {
		return err
	}
	return cli.WriteDocument(out, doc, format)
}

func runReport(args []string, out io.Writer) error {
	fs, o := newFlagSet("report", "report <record-id> | --doc <document-id>", out)
	docID := fs.String("doc", "", "remote document id instead of a ledger record")
	if err := parseArgs(fs, args, 0); err != nil {
		return err
	}
	if *docID == "" && fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}
	c, format, err := o.open()
	if err != nil {
		return err
	}
	defer c.Close()
	ctx := context.Background()

	var url string
	if *docID != "" {
		url, err = c.Client.GetReportURL(ctx, *docID)
		if err != nil {
			return err
		}
	} else {
		id, err := parseRecordID(fs.Arg(0))
		if err != nil {
			return err
		}
		sub, err := c.Storage.GetSubmission(ctx, id)
		if err != nil {
			return err
		}
		if sub.ReportURL == "" {
			if sub, err = c.Submissions.Refresh(ctx, id); err != nil {
				return err
			}
		}
		if sub.ReportURL == "" {
			return fmt.Errorf("report not available yet (status %s)", sub.StatusCode)
		}
		url = sub.ReportURL
	}
	if format == cli.OutputJSON {
		return cli.WriteJSON(out, map[string]string{"url": url})
	}
	fmt.Fprintln(out, url)
	return nil
}

func runAnalyse(args []string, out io.Writer) error {
	fs, o := newFlagSet("analyse", "analyse <record-id> | --doc <document-id>", out)
	docID := fs.String("doc", "", "remote document id instead of a ledger record")
	if err := parseArgs(fs, args, 0); err != nil {
		return err
	}
	if *docID == "" && fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}
	c, format, err := o.open()
	if err != nil {
		return err
	}
	defer c.Close()
	ctx := context.Background()

	if *docID != "" {
		if err := c.Client.StartAnalysis(ctx, *docID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Analysis queued: %s\n", *docID)
		return nil
	}
	id, err := parseRecordID(fs.Arg(0))
	if err != nil {
		return err
	}
	sub, err := c.Submissions.StartAnalysis(ctx, id)
	if err != nil {
		return err
	}
	return cli.WriteSubmission(out, sub, format)
}

func runDelete(args []string, out io.Writer) error {
	fs, o := newFlagSet("delete", "delete <document-id>", out)
	if err := parseArgs(fs, args, 1); err != nil {
		return err
	}
	c, _, err := o.open()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Client.DeleteDoc(context.Background(), fs.Arg(0)); err != nil {
		return err
	}
	fmt.Fprintf(out, "Document deleted: %s\n", fs.Arg(0))
	return nil
}

func runIndexing(args []string, out io.Writer) error {
	fs, o := newFlagSet("indexing", "indexing <document-id> [true|false|1|0]", out)
	if err := parseArgs(fs, args, 1); err != nil {
		return err
	}
	c, format, err := o.open()
	if err != nil {
		return err
	}
	defer c.Close()
	ctx := context.Background()
	id := fs.Arg(0)

	var indexed bool
	if fs.NArg() > 1 {
		if indexed, err = compilatio.ParseIndexingState(fs.Arg(1)); err != nil {
			return err
		}
		if err := c.Client.SetIndexingState(ctx, id, indexed); err != nil {
			return err
		}
	} else if indexed, err = c.Client.GetIndexingState(ctx, id); err != nil {
		return err
	}
	if format == cli.OutputJSON {
		return cli.WriteJSON(out, map[string]any{"id": id, "indexed": indexed})
	}
	fmt.Fprintf(out, "%s indexed: %t\n", id, indexed)
	return nil
}

func runSync(args []string, out io.Writer) error {
	fs, o := newFlagSet("sync", "sync", out)
	if err := parseArgs(fs, args, 0); err != nil {
		return err
	}
	c, format, err := o.open()
	if err != nil {
		return err
	}
	defer c.Close()

	result, err := c.Submissions.SyncPending(context.Background())
	if err != nil {
		return err
	}
	return cli.WriteSyncResult(out, result, format)
}

func runNews(args []string, out io.Writer) error {
	fs, o := newFlagSet("news", "news [--lang xx]", out)
	lang := fs.String("lang", "", "message language (default: plugin.language from config)")
	if err := parseArgs(fs, args, 0); err != nil {
		return err
	}
	c, format, err := o.open()
	if err != nil {
		return err
	}
	defer c.Close()

	news, err := c.Client.GetTechnicalNews(context.Background())
	if err != nil {
		return err
	}
	if *lang == "" {
		*lang = c.Config.Plugin.Language
	}
	return cli.WriteNews(out, news, *lang, format)
}

func runFileTypes(args []string, out io.Writer) error {
	fs, o := newFlagSet("filetypes", "filetypes", out)
	if err := parseArgs(fs, args, 0); err != nil {
		return err
	}
	c, format, err := o.open()
	if err != nil {
		return err
	}
	defer c.Close()

	types, err := c.Client.GetAllowedFileTypes(context.Background())
	if err != nil {
		return err
	}
	return cli.WriteFileTypes(out, types, format)
}

func runQuotas(args []string, out io.Writer) error {
	fs, o := newFlagSet("quotas", "quotas", out)
	if err := parseArgs(fs, args, 0); err != nil {
		return err
	}
	c, format, err := o.open()
	if err != nil {
		return err
	}
	defer c.Close()
	return cli.WriteQuotas(out, c.Client.GetQuotas(), c.Client.GetAllowedFileMaxSize(), format)
}

func runExpiration(args []string, out io.Writer) error {
	fs, o := newFlagSet("expiration", "expiration", out)
	if err := parseArgs(fs, args, 0); err != nil {
		return err
	}
	c, format, err := o.open()
	if err != nil {
		return err
	}
	defer c.Close()

	end, err := c.Client.GetAccountExpirationDate(context.Background())
	if err != nil {
		return err
	}
	if format == cli.OutputJSON {
		return cli.WriteJSON(out, map[string]string{"expiration_date": end})
	}
	fmt.Fprintln(out, end)
	return nil
}

func runConfigure(args []string, out io.Writer) error {
	fs, o := newFlagSet("configure", "configure", out)
	if err := parseArgs(fs, args, 0); err != nil {
		return err
	}
	c, _, err := o.open()
	if err != nil {
		return err
	}
	defer c.Close()

	pc := pluginConfiguration(c.Config)
	if err := c.Client.PostConfiguration(context.Background(), pc); err != nil {
		return err
	}
	fmt.Fprintf(out, "Configuration sent (runtime %s, version %s, language %s, every %d min)\n",
		pc.RuntimeVersion, pc.PluginVersion, pc.Language, pc.CronFrequency)
	return nil
}
