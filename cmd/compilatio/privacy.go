package main

import (
	"context"
	"fmt"
	"io"

	"github.com/hyperjump/compilatio/internal/cli"
	"github.com/hyperjump/compilatio/internal/models"
)

const privacyUsage = "privacy <metadata|contexts|users|export|delete> [flags]"

func runPrivacy(args []string, out io.Writer) error {
	if len(args) < 1 {
		fmt.Fprintf(out, "Usage: compilatio %s\n", privacyUsage)
		fmt.Fprintln(out, "  metadata                              Personal data declaration")
		fmt.Fprintln(out, "  contexts --user N                     Contexts holding a user's data")
		fmt.Fprintln(out, "  users --cm N                          Users with data in a module")
		fmt.Fprintln(out, "  export --cm N --user N                Export a user's data as JSON")
		fmt.Fprintln(out, "  delete --cm N [--user N|--users a,b]  Erase data locally and remotely")
		return errUsage
	}
	sub, args := args[0], args[1:]
	fs, o := newFlagSet("privacy "+sub, privacyUsage, out)
	userID := fs.Int64("user", 0, "user id")
	users := fs.String("users", "", "comma-separated user ids (delete)")
	cm := fs.Int64("cm", 0, "course module id")
	level := fs.String("level", models.ContextModule.String(), "context level")
	if err := parseArgs(fs, args, 0); err != nil {
		return err
	}
	lvl, err := models.ParseContextLevel(*level)
	if err != nil {
		return err
	}
	pctx := models.Context{Level: lvl, InstanceID: *cm}

	c, format, err := o.open()
	if err != nil {
		return err
	}
	defer c.Close()
	ctx := context.Background()
	p := c.Privacy

	switch sub {
	case "metadata":
		if format == cli.OutputJSON {
			return cli.WriteJSON(out, map[string]any{"items": p.Metadata()})
		}
		for _, item := range p.Metadata() {
			fmt.Fprintf(out, "%-18s %s\n", item.Kind, item.Name)
			for _, f := range item.Fields {
				fmt.Fprintf(out, "  %-20s %s\n", f.Name, f.Summary)
			}
		}
		return nil
	case "contexts":
		contexts, err := p.ContextsForUser(ctx, *userID)
		if err != nil {
			return err
		}
		if format == cli.OutputJSON {
			if contexts == nil {
				contexts = []models.Context{}
			}
			return cli.WriteJSON(out, map[string]any{"contexts": contexts})
		}
		for _, pc := range contexts {
			fmt.Fprintf(out, "%s %d\n", pc.Level, pc.InstanceID)
		}
		return nil
	case "users":
		ids, err := p.UsersInContext(ctx, pctx)
		if err != nil {
			return err
		}
		if format == cli.OutputJSON {
			if ids == nil {
				ids = []int64{}
			}
			return cli.WriteJSON(out, map[string]any{"context": pctx, "userids": ids})
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil
	case "export":
		return p.ExportUserData(ctx, *userID, pctx, out)
	case "delete":
		switch {
		case *users != "":
			ids, err := parseUserIDs(*users)
			if err != nil {
				return err
			}
			err = p.DeleteForUsers(ctx, pctx, ids)
			if err != nil {
				return err
			}
		case *userID != 0:
			if err := p.DeleteForUser(ctx, *userID, pctx); err != nil {
				return err
			}
		default:
			if err := p.DeleteForContext(ctx, pctx); err != nil {
				return err
			}
		}
		fmt.Fprintf(out, "Deleted data in %s %d\n", pctx.Level, pctx.InstanceID)
		return nil
	}
	return fmt.Errorf("unknown privacy subcommand %q", sub)
}
