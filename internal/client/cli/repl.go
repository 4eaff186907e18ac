package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/tabkeeper/internal/client/services"
)

// execIface is the command surface the REPL dispatches to. App satisfies it;
// tests provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context, wipe bool) error
	AddWorkspace(ctx context.Context, name string) error
	AddCollection(ctx context.Context, workspaceID, name string) error
	AddTab(ctx context.Context, collectionID, url, title string) error
	Rename(ctx context.Context, kind services.Kind, id, name string) error
	Move(ctx context.Context, kind services.Kind, id string, order int) error
	Delete(ctx context.Context, kind services.Kind, id string) error
	List(ctx context.Context) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
}

const helpText = `Available commands:
  addws <name>                       add a workspace
  addcol <workspace-id> <name>       add a collection
  addtab <collection-id> <url> [title]
  rename ws|col|tab <id> <name>      rename (for tabs: change the title)
  move ws|col|tab <id> <position>    change the sort position
  delete ws|col|tab <id>             delete (children go too)
  (l)ist                             show the library
  sync                               sync now
  status                             show sync status
  login | logout [--wipe]            manage the session
  exit | quit`

var kindAliases = map[string]services.Kind{
	"ws": services.KindWorkspace, "workspace": services.KindWorkspace,
	"col": services.KindCollection, "collection": services.KindCollection,
	"tab": services.KindTab,
}

// runREPL reads commands line by line and dispatches them to a. It returns
// on EOF, "exit" or "quit". Handler errors are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner, out io.Writer) {
	for {
		fmt.Fprintf(out, "tk %s> ", statusFn())
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if cmd == "exit" || cmd == "quit" {
			fmt.Fprintln(out, "Bye!")
			return
		}
		if err := dispatch(ctx, a, cmd, args, out); err != nil {
			fmt.Fprintln(out, "Error:", err)
		}
	}
}

func usage(out io.Writer, text string) error {
	fmt.Fprintln(out, "Usage:", text)
	return nil
}

func dispatch(ctx context.Context, a execIface, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "help":
		fmt.Fprintln(out, helpText)
		if !a.isLoggedIn() {
			fmt.Fprintln(out, "Not signed in: changes stay local until you run 'login'.")
		}
		return nil

	case "login":
		return a.Login(ctx)

	case "logout":
		return a.Logout(ctx, len(args) > 0 && args[0] == "--wipe")

	case "addws":
		if len(args) < 1 {
			return usage(out, "addws <name>")
		}
		return a.AddWorkspace(ctx, strings.Join(args, " "))

	case "addcol":
		if len(args) < 2 {
			return usage(out, "addcol <workspace-id> <name>")
		}
		return a.AddCollection(ctx, args[0], strings.Join(args[1:], " "))

	case "addtab":
		if len(args) < 2 {
			return usage(out, "addtab <collection-id> <url> [title]")
		}
		return a.AddTab(ctx, args[0], args[1], strings.Join(args[2:], " "))

	case "rename", "move", "delete":
		if len(args) < 2 {
			return usage(out, cmd+" ws|col|tab <id> ...")
		}
		kind, ok := kindAliases[args[0]]
		if !ok {
			return usage(out, cmd+" ws|col|tab <id> ...")
		}
		id := args[1]
		switch cmd {
		case "delete":
			return a.Delete(ctx, kind, id)
		case "rename":
			if len(args) < 3 {
				return usage(out, "rename ws|col|tab <id> <name>")
			}
			return a.Rename(ctx, kind, id, strings.Join(args[2:], " "))
		default:
			if len(args) < 3 {
				return usage(out, "move ws|col|tab <id> <position>")
			}
			order, err := strconv.Atoi(args[2])
			if err != nil {
				return usage(out, "move ws|col|tab <id> <position>")
			}
			return a.Move(ctx, kind, id, order)
		}

	case "l", "list":
		return a.List(ctx)

	case "sync":
		return a.Sync(ctx)

	case "status":
		return a.Status(ctx)

	default:
		fmt.Fprintln(out, "Unknown command:", cmd)
		return nil
	}
}
