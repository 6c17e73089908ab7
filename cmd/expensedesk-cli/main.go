package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"expensedesk/internal/api"
	"expensedesk/internal/cli"
	"expensedesk/internal/session"
	"expensedesk/internal/view"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	sessionPath := cfg.SessionFile
	if sessionPath == "" {
		sessionPath = session.DefaultPath()
	}
	sessions := session.NewStore(sessionPath)
	client := api.NewClient(cfg.APIBaseURL, sessions)

	ctx := context.Background()
	in := bufio.NewScanner(os.Stdin)

	if _, ok := sessions.CurrentUser(); !ok {
		if !login(ctx, in, client) {
			os.Exit(1)
		}
	}

	table := view.NewRecentTable(client, sessions)
	defer table.Close()
	sidebar := view.NewSidebar(client, sessions, func(path string) {
		fmt.Printf("-- redirected to %s --\n", path)
	})

	if user, ok := table.CurrentUser(); ok {
		fmt.Printf("Logged in as %s (%s)\n", user.Name, user.Username)
	}
	printNav(sidebar)

	if err := table.Refresh(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "refresh failed: %v\n", err)
	}
	printRows(table)

	fmt.Println(`Commands: list | edit <row> | delete <row> | nav | logout | quit`)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			return
		}
		fields := strings.Fields(in.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "list":
			if err := table.Refresh(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "refresh failed: %v\n", err)
			}
			printRows(table)
		case "edit":
			runEdit(ctx, table, fields)
		case "delete":
			runDelete(ctx, in, table, fields)
		case "nav":
			printNav(sidebar)
		case "logout":
			sidebar.Logout(ctx)
			return
		case "quit", "exit":
			return
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

func login(ctx context.Context, in *bufio.Scanner, client *api.Client) bool {
	fmt.Print("Username: ")
	if !in.Scan() {
		return false
	}
	username := strings.TrimSpace(in.Text())

	fmt.Print("Password: ")
	if !in.Scan() {
		return false
	}
	password := in.Text()

	user, err := client.Login(ctx, username, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		return false
	}
	fmt.Printf("Welcome, %s\n", user.Name)
	return true
}

func printNav(sidebar *view.Sidebar) {
	fmt.Println("Navigation:")
	for _, item := range sidebar.NavItems() {
		fmt.Printf("  %-24s %s\n", item.Name, item.Path)
	}
}

func printRows(table *view.RecentTable) {
	rows := table.Rows()
	if len(rows) == 0 {
		fmt.Println("No recent expenses.")
		return
	}

	fmt.Printf("%-3s %-14s %-16s %5s %12s  %s\n", "#", "Date", "User", "Count", "Amount", "Actions")
	for i, row := range rows {
		actions := make([]string, 0, 2)
		if row.CanEdit {
			actions = append(actions, "edit")
		} else {
			actions = append(actions, "edit✗ ("+row.EditDisabledReason+")")
		}
		if row.CanDelete {
			actions = append(actions, "delete")
		} else {
			actions = append(actions, "delete✗ ("+row.DeleteDisabledReason+")")
		}
		fmt.Printf("%-3d %-14s %-16s %5d %12s  %s\n",
			i+1, row.DateDisplay, row.UserDisplay, row.Count, row.AmountDisplay,
			strings.Join(actions, ", "))
	}
}

func rowArg(table *view.RecentTable, fields []string) (view.Row, bool) {
	if len(fields) < 2 {
		fmt.Println("row number required")
		return view.Row{}, false
	}
	n, err := strconv.Atoi(fields[1])
	rows := table.Rows()
	if err != nil || n < 1 || n > len(rows) {
		fmt.Printf("no such row %q\n", fields[1])
		return view.Row{}, false
	}
	return rows[n-1], true
}

func runEdit(ctx context.Context, table *view.RecentTable, fields []string) {
	row, ok := rowArg(table, fields)
	if !ok {
		return
	}

	if err := table.InitiateEdit(ctx, row.Record); err != nil {
		fmt.Printf("cannot edit: %v\n", err)
		return
	}

	editing, ok := table.Editing()
	if !ok {
		return
	}
	fmt.Printf("Order items for %s on %s:\n", editing.User.Display(), editing.Date.String())
	for _, item := range editing.OrderItems {
		fmt.Printf("  %-24s x%-3d ₹%s\n", item.Name, item.Count, item.Price.Format())
	}
	table.CancelEdit()
}

func runDelete(ctx context.Context, in *bufio.Scanner, table *view.RecentTable, fields []string) {
	row, ok := rowArg(table, fields)
	if !ok {
		return
	}
	if !row.CanDelete {
		fmt.Println(row.DeleteDisabledReason)
		return
	}

	err := table.InitiateDelete(ctx, row.Record, func(message string) bool {
		fmt.Printf("%s [y/N] ", message)
		if !in.Scan() {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(in.Text()))
		return answer == "y" || answer == "yes"
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "delete failed: %v\n", err)
		return
	}
	printRows(table)
}
