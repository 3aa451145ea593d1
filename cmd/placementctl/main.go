// Command placementctl 是 TPO 运维工具：查看名册、核对计数、手动清理过期 drive。
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"placement-portal/internal/config"
	"placement-portal/internal/model"
	"placement-portal/internal/placement"
	"placement-portal/internal/scheduler"
	"placement-portal/internal/storage"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

const usage = `usage: placementctl <command> [args]

commands:
  eligible-drives <studentID>   list active drives the student can apply to
  check <driveID> <studentID>   explain eligibility for one drive
  roster <driveID>              show the applicant roster and counters
  recount <driveID>             rebuild counters from the roster
  sweep                         close active drives past their deadline`

type cli struct {
	svc     *placement.Service
	store   *storage.Store
	sweeper *scheduler.Sweeper
	out     io.Writer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		color.Red("load config: %v", err)
		os.Exit(1)
	}
	store, err := storage.NewStore(cfg.Database.Path)
	if err != nil {
		color.Red("open database: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	logger := log.New(os.Stderr, "[placementctl] ", 0)
	c := &cli{
		svc:     placement.New(store, nil, nil, nil, logger),
		store:   store,
		sweeper: scheduler.NewSweeper(store, cfg.Sweeper, logger),
		out:     os.Stdout,
	}
	if err := c.run(context.Background(), os.Args[1:]); err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%s", usage)
	}
	need := func(n int) error {
		if len(args)-1 < n {
			return fmt.Errorf("%s: missing arguments\n\n%s", args[0], usage)
		}
		return nil
	}

	switch args[0] {
	case "eligible-drives":
		if err := need(1); err != nil {
			return err
		}
		return c.eligibleDrives(ctx, args[1])
	case "check":
		if err := need(2); err != nil {
			return err
		}
		return c.check(ctx, args[1], args[2])
	case "roster":
		if err := need(1); err != nil {
			return err
		}
		return c.roster(ctx, args[1])
	case "recount":
		if err := need(1); err != nil {
			return err
		}
		return c.recount(ctx, args[1])
	case "sweep":
		return c.sweep(ctx)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
	}
}

func (c *cli) eligibleDrives(ctx context.Context, studentID string) error {
	drives, err := c.svc.GetEligibleDrives(ctx, studentID)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, color.YellowString("Eligible drives for %s", studentID))
	table := tablewriter.NewWriter(c.out)
	table.SetHeader([]string{"Drive", "Company", "Position", "Deadline", "Min CGPA", "Branches"})
	for _, d := range drives {
		table.Append([]string{
			d.ID,
			d.CompanyName,
			d.Position,
			d.Deadline.Format("2006-01-02"),
			strconv.FormatFloat(d.Eligibility.MinCGPA, 'f', 2, 64),
			strings.Join(d.Eligibility.AllowedBranches, ","),
		})
	}
	table.Render()
	return nil
}

func (c *cli) check(ctx context.Context, driveID, studentID string) error {
	res, err := c.svc.CheckEligibility(ctx, driveID, studentID)
	if err != nil {
		return err
	}
	if res.Eligible {
		fmt.Fprintln(c.out, color.GreenString("%s is eligible for %s", studentID, driveID))
		return nil
	}
	fmt.Fprintln(c.out, color.RedString("%s is not eligible for %s", studentID, driveID))
	for _, r := range res.Reasons {
		fmt.Fprintf(c.out, "  - %s\n", r)
	}
	return nil
}

func (c *cli) roster(ctx context.Context, driveID string) error {
	d, err := c.store.GetDrive(ctx, driveID)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, color.YellowString("%s - %s (%s)", d.CompanyName, d.Position, d.Status))
	table := tablewriter.NewWriter(c.out)
	table.SetHeader([]string{"#", "Student", "Applied At", "Status"})
	for i, a := range d.Applicants {
		table.Append([]string{
			strconv.Itoa(i + 1),
			a.StudentID,
			a.AppliedAt.Format("2006-01-02 15:04"),
			statusLabel(a.Status),
		})
	}
	table.SetFooter([]string{"", "", "shortlisted / selected", fmt.Sprintf("%d / %d", d.ShortlistedCount, d.SelectedCount)})
	table.Render()
	return nil
}

func (c *cli) recount(ctx context.Context, driveID string) error {
	before, err := c.store.GetDrive(ctx, driveID)
	if err != nil {
		return err
	}
	counts, err := c.svc.RecountDrive(ctx, driveID)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(c.out)
	table.SetHeader([]string{"Counter", "Stored", "Recounted"})
	table.Append([]string{"shortlisted", strconv.Itoa(before.ShortlistedCount), strconv.Itoa(counts.Shortlisted)})
	table.Append([]string{"selected", strconv.Itoa(before.SelectedCount), strconv.Itoa(counts.Selected)})
	table.Render()
	if before.ShortlistedCount != counts.Shortlisted || before.SelectedCount != counts.Selected {
		fmt.Fprintln(c.out, color.YellowString("counters repaired"))
	} else {
		fmt.Fprintln(c.out, color.GreenString("counters already consistent"))
	}
	return nil
}

func (c *cli) sweep(ctx context.Context) error {
	closed, err := c.sweeper.RunOnce(ctx)
	if err != nil {
		return err
	}
	if len(closed) == 0 {
		fmt.Fprintln(c.out, color.GreenString("no expired drives"))
		return nil
	}
	fmt.Fprintln(c.out, color.YellowString("closed %d expired drives", len(closed)))
	for _, id := range closed {
		fmt.Fprintf(c.out, "  - %s\n", id)
	}
	return nil
}

func statusLabel(s model.ApplicantStatus) string {
	switch s {
	case model.ApplicantSelected:
		return color.GreenString(string(s))
	case model.ApplicantShortlisted:
		return color.CyanString(string(s))
	case model.ApplicantRejected:
		return color.RedString(string(s))
	default:
		return string(s)
	}
}
