package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tabkeeper/internal/client/client"
	"github.com/dmitrijs2005/tabkeeper/internal/client/models"
	"github.com/dmitrijs2005/tabkeeper/internal/client/services"
)

func (a *App) Login(ctx context.Context) error {
	token, err := GetSecret(a.reader, "Enter access token", a.out)
	if err != nil {
		return err
	}
	if err := a.auth.SignIn(ctx, token); err != nil {
		return err
	}
	a.signedIn = true
	fmt.Fprintln(a.out, "Signed in.")

	a.sync.Start(ctx)
	return a.Sync(ctx)
}

func (a *App) Logout(ctx context.Context, wipe bool) error {
	a.sync.Stop()
	if err := a.auth.SignOut(ctx, wipe); err != nil {
		return err
	}
	a.signedIn = false
	if wipe {
		fmt.Fprintln(a.out, "Signed out, local data removed.")
	} else {
		fmt.Fprintln(a.out, "Signed out. Local data is kept and will sync after the next login.")
	}
	return nil
}

func (a *App) AddWorkspace(ctx context.Context, name string) error {
	w, err := a.library.CreateWorkspace(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Workspace %q added [%s]\n", w.Name, w.ID)
	return nil
}

func (a *App) AddCollection(ctx context.Context, workspaceID, name string) error {
	c, err := a.library.CreateCollection(ctx, workspaceID, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Collection %q added [%s]\n", c.Name, c.ID)
	return nil
}

func (a *App) AddTab(ctx context.Context, collectionID, url, title string) error {
	t, err := a.library.AddTab(ctx, collectionID, title, url)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Tab %q added [%s]\n", t.Title, t.ID)
	return nil
}

func (a *App) Rename(ctx context.Context, kind services.Kind, id, name string) error {
	switch kind {
	case services.KindWorkspace:
		return a.library.RenameWorkspace(ctx, id, name)
	case services.KindCollection:
		return a.library.RenameCollection(ctx, id, name)
	case services.KindTab:
		return a.library.UpdateTab(ctx, id, models.TabPatch{Title: &name})
	default:
		return fmt.Errorf("%w: %q", services.ErrUnknownKind, kind)
	}
}

func (a *App) Move(ctx context.Context, kind services.Kind, id string, order int) error {
	return a.library.Reorder(ctx, kind, id, order)
}

func (a *App) Delete(ctx context.Context, kind services.Kind, id string) error {
	switch kind {
	case services.KindWorkspace:
		return a.library.DeleteWorkspace(ctx, id)
	case services.KindCollection:
		return a.library.DeleteCollection(ctx, id)
	case services.KindTab:
		return a.library.DeleteTab(ctx, id)
	default:
		return fmt.Errorf("%w: %q", services.ErrUnknownKind, kind)
	}
}

// List prints the active library as a tree.
func (a *App) List(ctx context.Context) error {
	workspaces, err := a.library.Workspaces(ctx)
	if err != nil {
		return err
	}
	if len(workspaces) == 0 {
		fmt.Fprintln(a.out, "No workspaces yet. Try: addws <name>")
		return nil
	}

	for _, w := range workspaces {
		fmt.Fprintf(a.out, "%s [%s]\n", w.Name, w.ID)
		collections, err := a.library.Collections(ctx, w.ID)
		if err != nil {
			return err
		}
		for _, c := range collections {
			fmt.Fprintf(a.out, "  %s [%s]\n", c.Name, c.ID)
			tabs, err := a.library.Tabs(ctx, c.ID)
			if err != nil {
				return err
			}
			for _, t := range tabs {
				fmt.Fprintf(a.out, "    - %s <%s> [%s]\n", t.Title, t.URL, t.ID)
			}
		}
	}
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	if !a.signedIn {
		fmt.Fprintln(a.out, "Not signed in; run 'login' first.")
		return nil
	}

	res, err := a.sync.SyncNow(ctx)
	switch {
	case errors.Is(err, client.ErrUnauthorized):
		// onUnauthorized already told the user.
		return nil
	case err != nil:
		return fmt.Errorf("sync failed: %w", err)
	case res.Skipped:
		fmt.Fprintf(a.out, "Sync skipped: %s\n", res.Reason)
	default:
		fmt.Fprintf(a.out, "Synced: %d sent, %d received (local wins %d, server wins %d)\n",
			res.Pushed, res.Pulled, res.Stats.LocalWins, res.Stats.ServerWins)
	}
	return nil
}

func (a *App) Status(ctx context.Context) error {
	st := a.sync.State()
	online := "offline"
	if a.monitor.Status() {
		online = "online"
	}
	fmt.Fprintf(a.out, "Connection: %s\nSync: %s\nUnsynced changes: %t\nLast sync checkpoint: %d\n",
		online, st.Status, st.Dirty, st.LastSyncTimestamp)
	if st.LastError != nil {
		fmt.Fprintf(a.out, "Last error: %v\n", st.LastError)
	}
	if st.RetryDelay > 0 {
		fmt.Fprintf(a.out, "Next retry in: %s\n", st.RetryDelay)
	}
	return nil
}
