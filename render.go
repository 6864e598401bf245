package main

import (
	"fmt"
	"strings"

	rankingdomain "github.com/Black-And-White-Club/taco-rank/app/modules/ranking/domain"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("240"))

	tierStyles = map[rankingdomain.Tier]lipgloss.Style{
		rankingdomain.TierB:      lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		rankingdomain.TierA:      lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
		rankingdomain.TierS:      lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		rankingdomain.TierSS:     lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		rankingdomain.TierSSS:    lipgloss.NewStyle().Foreground(lipgloss.Color("205")),
		rankingdomain.TierLegend: lipgloss.NewStyle().Foreground(lipgloss.Color("199")).Bold(true),
	}
)

func styleFor(l rankingdomain.Label) lipgloss.Style {
	if s, ok := tierStyles[l.Tier]; ok {
		return s
	}
	return lipgloss.NewStyle()
}

func renderLadder() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-10s %8s %8s", "Label", "At", "Cost")) + "\n")
	for _, step := range rankingdomain.Ladder() {
		line := fmt.Sprintf("%-10s %8s %8d", step.Label, humanize.Comma(step.At), step.Label.Tier.Cost())
		b.WriteString(styleFor(step.Label).Render(line) + "\n")
	}
	return b.String()
}

func renderTiers(scores []int64) string {
	var b strings.Builder
	for _, score := range scores {
		label := rankingdomain.Compute(score)
		next := rankingdomain.NextStepAt(score)
		line := fmt.Sprintf("%8s  %-10s next at %s", humanize.Comma(score), label, humanize.Comma(next))
		b.WriteString(styleFor(label).Render(line) + "\n")
	}
	return b.String()
}
