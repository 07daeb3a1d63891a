package report

import (
	"fmt"
	"strconv"

	"github.com/awalterschulze/gographviz"

	"github.com/BaSui01/mysteryshopper/agent/journey"
	"github.com/BaSui01/mysteryshopper/agent/oracle"
)

const (
	graphName = "journey"
	startNode = "start"
	endNode   = "end"
)

// DOT renders the journey as a directed graph. Each distinct URL is a node
// coloured by its best conversion score; edges join consecutive steps and are
// labelled with the action that led from one to the next.
func DOT(j *journey.Journey) (string, error) {
	g := gographviz.NewGraph()
	if err := g.SetName(graphName); err != nil {
		return "", err
	}
	if err := g.SetDir(true); err != nil {
		return "", err
	}
	if err := g.AddAttr(graphName, "rankdir", "LR"); err != nil {
		return "", err
	}
	if err := g.AddNode(graphName, startNode, map[string]string{
		"shape": "circle",
		"label": strconv.Quote("start"),
	}); err != nil {
		return "", err
	}

	// 同一 URL 只保留最高分
	best := map[string]oracle.UXAnalysis{}
	order := []string{}
	for _, rec := range j.Steps {
		url := stepURL(j, rec)
		a, ok := best[url]
		if !ok {
			order = append(order, url)
		}
		if !ok || rec.Analysis.ConversionScore > a.ConversionScore {
			best[url] = rec.Analysis
		}
	}
	for _, url := range order {
		a := best[url]
		label := fmt.Sprintf("%s | %s %d%%", url, a.PageType, a.ConversionScore)
		if err := g.AddNode(graphName, strconv.Quote(url), map[string]string{
			"shape": "box",
			"label": strconv.Quote(label),
			"color": gradeColor(GradeFor(float64(a.ConversionScore))),
		}); err != nil {
			return "", err
		}
	}

	prev := startNode
	edgeLabel := "load"
	for _, rec := range j.Steps {
		cur := strconv.Quote(stepURL(j, rec))
		if err := g.AddEdge(prev, cur, true, map[string]string{
			"label": strconv.Quote(fmt.Sprintf("%d: %s", rec.Step, edgeLabel)),
		}); err != nil {
			return "", err
		}
		prev = cur
		edgeLabel = actionLabel(rec.Decision)
	}

	if j.Status != journey.StatusRunning {
		if err := g.AddNode(graphName, endNode, map[string]string{
			"shape": "doublecircle",
			"label": strconv.Quote(fmt.Sprintf("%s (%s)", j.Status, j.FinishReason)),
		}); err != nil {
			return "", err
		}
		if err := g.AddEdge(prev, endNode, true, map[string]string{
			"label": strconv.Quote(edgeLabel),
		}); err != nil {
			return "", err
		}
	}
	return g.String(), nil
}

func stepURL(j *journey.Journey, rec journey.StepRecord) string {
	if rec.URL == "" {
		return j.StartURL
	}
	return rec.URL
}

func actionLabel(d oracle.Decision) string {
	if d.Action == oracle.ActionClick {
		return "click " + oracle.Truncate(d.Label, 30)
	}
	return string(d.Action)
}

func gradeColor(g Grade) string {
	switch g {
	case GradeGood:
		return "green"
	case GradeFair:
		return "orange"
	default:
		return "red"
	}
}
