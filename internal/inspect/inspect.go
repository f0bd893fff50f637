// Package inspect holds the offline diagnostics used to curate source data:
// record counts, property key inventories, dusun totals, join reports and
// name searches. Nothing here runs on the request path.
package inspect

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"text/tabwriter"

	"sipeta-bknd/internal/geofeed"
	"sipeta-bknd/internal/hierarchy"
	"sipeta-bknd/internal/models"

	"github.com/paulmach/orb/geojson"
)

// Counter is implemented by hierarchy sources that can count their records.
type Counter interface {
	CollectionCounts(ctx context.Context) (map[string]int64, error)
}

type CountRow struct {
	Collection string
	Count      int64
}

// Counts returns the record count per collection, sorted by name.
func Counts(ctx context.Context, c Counter) ([]CountRow, error) {
	m, err := c.CollectionCounts(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]CountRow, 0, len(m))
	for name, n := range m {
		rows = append(rows, CountRow{Collection: name, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Collection < rows[j].Collection })
	return rows, nil
}

func PrintCounts(w io.Writer, rows []CountRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLLECTION\tDOCUMENTS")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\n", r.Collection, r.Count)
	}
	return tw.Flush()
}

// PrintFields lists every property key of a collection with how many
// features carry it, so new key spellings show up next to known ones.
func PrintFields(w io.Writer, fc *geojson.FeatureCollection) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "features: %d\n", len(fc.Features))
	fmt.Fprintln(tw, "KEY\tFEATURES")
	for _, kc := range geofeed.PropertyInventory(fc) {
		fmt.Fprintf(tw, "%s\t%d\n", kc.Key, kc.Count)
	}
	return tw.Flush()
}

func PrintDusun(w io.Writer, s hierarchy.DusunSummary, perDesa bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if perDesa {
		fmt.Fprintln(tw, "KABUPATEN\tKECAMATAN\tDESA\tRAW\tCLEAN")
		for _, d := range s.Desa {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", d.Kabupaten, d.Kecamatan, d.Desa, d.Raw, d.Clean)
		}
	}
	fmt.Fprintf(tw, "desa records\t%d\n", len(s.Desa))
	fmt.Fprintf(tw, "total dusun (raw)\t%d\n", s.TotalDusunRaw)
	fmt.Fprintf(tw, "total dusun (clean)\t%d\n", s.TotalDusunClean)
	return tw.Flush()
}

// JoinReport summarizes how one boundary level matched the hierarchy.
type JoinReport struct {
	Level       models.Level
	Features    int
	Skipped     int
	Joined      int
	Missing     []string // hierarchy nodes without a boundary
	Diagnostics []models.Diagnostic
}

// Join matches a loaded level against tree and lists both directions of
// mismatch: boundaries without a region and regions without a boundary.
func Join(tree *hierarchy.Tree, lr *geofeed.LevelResult) JoinReport {
	rep := JoinReport{
		Level:       lr.Level,
		Features:    len(lr.Features) + lr.Skipped,
		Skipped:     lr.Skipped,
		Diagnostics: append([]models.Diagnostic{}, lr.Diagnostics...),
	}

	if lr.Level.IsOrg() {
		res := geofeed.JoinToOrgUnits(lr.Features, tree)
		rep.Joined = len(res.Joined)
		rep.Diagnostics = append(rep.Diagnostics, res.Diagnostics...)
		have := make(map[string]bool, len(res.Joined))
		for _, j := range res.Joined {
			have[j.Unit.ID] = true
		}
		for _, u := range tree.OrgUnits(lr.Level) {
			if !have[u.ID] {
				rep.Missing = append(rep.Missing, u.Name)
			}
		}
		return rep
	}

	res := geofeed.JoinToHierarchy(lr.Features, tree)
	rep.Joined = len(res.Joined)
	rep.Diagnostics = append(rep.Diagnostics, res.Diagnostics...)
	have := make(map[string]bool, len(res.Joined))
	for _, j := range res.Joined {
		have[j.Node.ID] = true
	}
	for _, n := range tree.Nodes(lr.Level) {
		if !have[n.ID] {
			label := n.Name
			if p := tree.Parent(n); p != nil {
				label = n.Name + " (" + p.Name + ")"
			}
			rep.Missing = append(rep.Missing, label)
		}
	}
	return rep
}

func PrintJoin(w io.Writer, rep JoinReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "level\t%s\n", rep.Level)
	fmt.Fprintf(tw, "features\t%d\n", rep.Features)
	fmt.Fprintf(tw, "skipped\t%d\n", rep.Skipped)
	fmt.Fprintf(tw, "joined\t%d\n", rep.Joined)
	fmt.Fprintf(tw, "regions without boundary\t%d\n", len(rep.Missing))
	if len(rep.Diagnostics) > 0 {
		fmt.Fprintln(tw, "\nCODE\tSUBJECT\tMESSAGE")
		for _, d := range rep.Diagnostics {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Code, d.Subject, d.Message)
		}
	}
	if len(rep.Missing) > 0 {
		fmt.Fprintln(tw, "\nREGION WITHOUT BOUNDARY")
		for _, m := range rep.Missing {
			fmt.Fprintln(tw, m)
		}
	}
	return tw.Flush()
}

// NameHit is one name matched by SearchNames.
type NameHit struct {
	Source string // "hierarchy" or "geo"
	Level  models.Level
	Name   string
	Key    string
	Parent string
}

// SearchNames runs pattern over region names at level in the hierarchy and,
// when fc is given, over the names resolved from its features. Used to find
// spelling variants worth adding to the alias file.
func SearchNames(tree *hierarchy.Tree, fc *geojson.FeatureCollection, aliases geofeed.PropertyAliases, level models.Level, pattern *regexp.Regexp) []NameHit {
	var hits []NameHit
	if tree != nil {
		if level.IsOrg() {
			for _, u := range tree.OrgUnits(level) {
				if pattern.MatchString(u.Name) {
					hits = append(hits, NameHit{Source: "hierarchy", Level: level, Name: u.Name, Key: u.Key})
				}
			}
		} else {
			for _, n := range tree.Nodes(level) {
				if !pattern.MatchString(n.Name) {
					continue
				}
				hit := NameHit{Source: "hierarchy", Level: level, Name: n.Name, Key: n.Key}
				if p := tree.Parent(n); p != nil {
					hit.Parent = p.Name
				}
				hits = append(hits, hit)
			}
		}
	}
	if fc != nil {
		for _, f := range fc.Features {
			name, ok := aliases.ResolveName(level, f.Properties)
			if !ok || !pattern.MatchString(name) {
				continue
			}
			parent, _ := aliases.ResolveParent(level, f.Properties)
			key := ""
			if tree != nil {
				key = tree.Key(level, name)
			}
			hits = append(hits, NameHit{Source: "geo", Level: level, Name: name, Key: key, Parent: parent})
		}
	}
	return hits
}

func PrintNames(w io.Writer, hits []NameHit) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tLEVEL\tNAME\tKEY\tPARENT")
	for _, h := range hits {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", h.Source, h.Level, h.Name, h.Key, h.Parent)
	}
	return tw.Flush()
}
