// trackerctl is the operator client for the casetrack API. It keeps a local
// session file and talks to the server through the cached client layer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/opsdesk/casetrack/internal/client"
	"github.com/opsdesk/casetrack/internal/models"
)

const defaultAPIBase = "http://localhost:3001"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return nil
	}

	base := os.Getenv("CASETRACK_API")
	if base == "" {
		base = defaultAPIBase
	}
	api := client.New(base)

	// Rehydrate the saved session; commands other than login need it.
	session, err := client.LoadSession()
	if err != nil {
		return err
	}
	if session != nil {
		api.SetSession(session.Token, session.User)
	}

	ctx := context.Background()

	switch args[0] {
	case "login":
		return cmdLogin(ctx, api, args[1:])
	case "logout":
		api.Logout()
		if err := client.ClearSession(); err != nil {
			return err
		}
		fmt.Println("logged out")
		return nil
	case "whoami":
		user := api.User()
		if user == nil {
			return fmt.Errorf("not logged in")
		}
		fmt.Printf("%s (#%d, %s)\n", user.Username, user.ID, user.Role)
		return nil
	case "passwd":
		return cmdPasswd(ctx, api)
	case "leads":
		return cmdLeads(ctx, api, args[1:])
	case "lead":
		return cmdLead(ctx, api, args[1:])
	case "cases":
		return cmdCases(ctx, api)
	case "case":
		return cmdCase(ctx, api, args[1:])
	case "users":
		return cmdUsers(ctx, api)
	case "user":
		return cmdUser(ctx, api, args[1:])
	case "help", "-h", "--help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage() {
	fmt.Println(`usage: trackerctl <command> [flags]

  login -u <username>      log in and store the session
  logout                   drop the stored session
  whoami                   show the logged-in user
  passwd                   change your own password

  leads <query>            search leads (at least 2 characters)
  lead <ckt>               show one lead by circuit code

  cases                    list cases (admins see all)
  case new [flags]         open a case (see 'case new -h')
  case set <id> [flags]    update case fields (see 'case set -h')
  case rm <id>             delete a case

  users                    list accounts (admin)
  user add -u <name> -r <role>   create an account (admin)
  user rm <id>             delete an account (admin)`)
}

func cmdLogin(ctx context.Context, api *client.Client, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("u", "", "username")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		return fmt.Errorf("login requires -u <username>")
	}

	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	user, err := api.Login(ctx, *username, password)
	if err != nil {
		return err
	}
	if err := client.SaveSession(&client.Session{Token: api.Token(), User: *user}); err != nil {
		return err
	}
	fmt.Printf("logged in as %s (%s)\n", user.Username, user.Role)
	return nil
}

func cmdPasswd(ctx context.Context, api *client.Client) error {
	if api.User() == nil {
		return fmt.Errorf("not logged in")
	}
	current, err := promptPassword("Current password: ")
	if err != nil {
		return err
	}
	updated, err := promptPassword("New password: ")
	if err != nil {
		return err
	}
	if err := api.ChangePassword(ctx, current, updated); err != nil {
		return err
	}
	fmt.Println("password changed")
	return nil
}

func cmdLeads(ctx context.Context, api *client.Client, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("leads requires a search query")
	}
	leads, err := api.SearchLeads(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CKT\tCUSTOMER\tCONTACT\tBANDWIDTH\tSALES")
	for _, lead := range leads {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			lead.Ckt, lead.CustName, lead.ContactName, lead.Bandwidth, lead.SalesPerson)
	}
	return w.Flush()
}

func cmdLead(ctx context.Context, api *client.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("lead requires a circuit code")
	}
	lead, err := api.GetLead(ctx, args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ckt:\t%s\n", lead.Ckt)
	fmt.Fprintf(w, "customer:\t%s\n", lead.CustName)
	fmt.Fprintf(w, "contact:\t%s\n", lead.ContactName)
	fmt.Fprintf(w, "email:\t%s\n", lead.EmailID)
	fmt.Fprintf(w, "address:\t%s\n", lead.Address)
	fmt.Fprintf(w, "bandwidth:\t%s\n", lead.Bandwidth)
	fmt.Fprintf(w, "device:\t%s\n", lead.Device)
	fmt.Fprintf(w, "usable ip:\t%s\n", lead.UsableIPAddress)
	fmt.Fprintf(w, "gateway:\t%s\n", lead.Gateway)
	fmt.Fprintf(w, "sales:\t%s\n", lead.SalesPerson)
	fmt.Fprintf(w, "remarks:\t%s\n", lead.Remarks)
	return w.Flush()
}

func cmdCases(ctx context.Context, api *client.Client) error {
	cases, err := api.ListCases(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLEAD\tCOMPANY\tSTATUS\tASSIGNEE\tDUE\tSPENT")
	for _, c := range cases {
		assignee := "-"
		if c.AssignedToUser != nil {
			assignee = *c.AssignedToUser
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%dm\n",
			c.ID, c.LeadCkt, c.CompanyName, c.Status, assignee,
			c.DueDate.Local().Format("2006-01-02 15:04"), c.TimeSpent)
	}
	return w.Flush()
}

func cmdCase(ctx context.Context, api *client.Client, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("case requires a subcommand: new, set, rm")
	}

	switch args[0] {
	case "new":
		return cmdCaseNew(ctx, api, args[1:])
	case "set":
		return cmdCaseSet(ctx, api, args[1:])
	case "rm":
		if len(args) != 2 {
			return fmt.Errorf("case rm requires an id")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		if err := api.DeleteCase(ctx, id); err != nil {
			return err
		}
		fmt.Printf("case %d deleted\n", id)
		return nil
	default:
		return fmt.Errorf("unknown case subcommand %q", args[0])
	}
}

func cmdCaseNew(ctx context.Context, api *client.Client, args []string) error {
	fs := flag.NewFlagSet("case new", flag.ContinueOnError)
	ckt := fs.String("ckt", "", "lead circuit code")
	ip := fs.String("ip", "", "ip address")
	connectivity := fs.String("connectivity", string(models.ConnectivityUnknown), "Stable|Unstable|Unknown")
	assigned := fs.String("assigned", "", "assigned date (defaults to now)")
	due := fs.String("due", "", "due date")
	remarks := fs.String("remarks", "", "case remarks")
	status := fs.String("status", string(models.StatusPending), "Pending|Overdue|Completed|OnHold")
	spent := fs.Int("time", 0, "time spent, minutes")
	device := fs.String("device", "", "device")
	assign := fs.Uint("assign", 0, "assignee user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ckt == "" || *due == "" {
		return fmt.Errorf("case new requires -ckt and -due")
	}

	assignedAt := time.Now()
	if *assigned != "" {
		parsed, err := parseDate(*assigned)
		if err != nil {
			return err
		}
		assignedAt = parsed
	}
	dueAt, err := parseDate(*due)
	if err != nil {
		return err
	}

	payload := client.CreateCasePayload{
		LeadCkt:      *ckt,
		IPAddress:    *ip,
		Connectivity: *connectivity,
		AssignedDate: assignedAt,
		DueDate:      dueAt,
		CaseRemarks:  *remarks,
		Status:       *status,
		TimeSpent:    *spent,
		Device:       *device,
	}
	if *assign != 0 {
		assignee := uint(*assign)
		payload.AssignedTo = &assignee
	}

	created, err := api.CreateCase(ctx, payload)
	if err != nil {
		return err
	}
	fmt.Printf("case %d opened for %s (%s)\n", created.ID, created.LeadCkt, created.CompanyName)
	return nil
}

func cmdCaseSet(ctx context.Context, api *client.Client, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("case set requires an id")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("case set", flag.ContinueOnError)
	status := fs.String("status", "", "Pending|Overdue|Completed|OnHold")
	remarks := fs.String("remarks", "", "case remarks")
	spent := fs.Int("time", -1, "time spent, minutes")
	device := fs.String("device", "", "device")
	ip := fs.String("ip", "", "ip address")
	connectivity := fs.String("connectivity", "", "Stable|Unstable|Unknown")
	due := fs.String("due", "", "due date")
	assign := fs.Int("assign", -1, "assignee user id, 0 to unassign")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	var payload client.UpdateCasePayload
	changed := false
	if *status != "" {
		payload.Status = status
		changed = true
	}
	if *remarks != "" {
		payload.CaseRemarks = remarks
		changed = true
	}
	if *spent >= 0 {
		payload.TimeSpent = spent
		changed = true
	}
	if *device != "" {
		payload.Device = device
		changed = true
	}
	if *ip != "" {
		payload.IPAddress = ip
		changed = true
	}
	if *connectivity != "" {
		payload.Connectivity = connectivity
		changed = true
	}
	if *due != "" {
		dueAt, err := parseDate(*due)
		if err != nil {
			return err
		}
		payload.DueDate = &dueAt
		changed = true
	}
	if *assign >= 0 {
		assignee := uint(*assign)
		payload.AssignedTo = &assignee
		changed = true
	}
	if !changed {
		return fmt.Errorf("case set: nothing to change")
	}

	updated, err := api.UpdateCase(ctx, id, payload)
	if err != nil {
		return err
	}
	fmt.Printf("case %d updated (status %s)\n", updated.ID, updated.Status)
	return nil
}

func cmdUsers(ctx context.Context, api *client.Client) error {
	users, err := api.ListUsers(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tROLE\tCREATED")
	for _, user := range users {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			user.ID, user.Username, user.Role, user.CreatedAt.Local().Format("2006-01-02"))
	}
	return w.Flush()
}

func cmdUser(ctx context.Context, api *client.Client, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("user requires a subcommand: add, rm")
	}

	switch args[0] {
	case "add":
		fs := flag.NewFlagSet("user add", flag.ContinueOnError)
		username := fs.String("u", "", "username")
		role := fs.String("r", string(models.RoleUser), "admin|user")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *username == "" {
			return fmt.Errorf("user add requires -u <username>")
		}

		password, err := promptPassword("Password for " + *username + ": ")
		if err != nil {
			return err
		}

		user, err := api.CreateUser(ctx, client.CreateUserPayload{
			Username: *username,
			Password: password,
			Role:     *role,
		})
		if err != nil {
			return err
		}
		fmt.Printf("user %s created (#%d)\n", user.Username, user.ID)
		return nil
	case "rm":
		if len(args) != 2 {
			return fmt.Errorf("user rm requires an id")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		if err := api.DeleteUser(ctx, id); err != nil {
			return err
		}
		fmt.Printf("user %d deleted\n", id)
		return nil
	default:
		return fmt.Errorf("unknown user subcommand %q", args[0])
	}
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(password), nil
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(id), nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if parsed, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
