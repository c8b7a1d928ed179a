// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/toeirei/wardstone/internal/i18n"
	"github.com/toeirei/wardstone/internal/model"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	goodStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	badStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	criticalBadge = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	highBadge     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	mediumBadge   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	lowBadge      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// severityBadge renders a fixed-width, colored severity tag.
func severityBadge(s model.Severity) string {
	label := fmt.Sprintf("%-8s", strings.ToUpper(string(s)))
	switch s {
	case model.SeverityCritical:
		return criticalBadge.Render(label)
	case model.SeverityHigh:
		return highBadge.Render(label)
	case model.SeverityMedium:
		return mediumBadge.Render(label)
	default:
		return lowBadge.Render(label)
	}
}

// scoreStyle picks a color for a 0-100 security score.
func scoreStyle(score int) lipgloss.Style {
	switch {
	case score >= 90:
		return goodStyle
	case score >= 70:
		return warnStyle
	default:
		return badStyle
	}
}

// renderAuditRecord formats the outcome of one audit cycle.
func renderAuditRecord(r model.AuditRecord) string {
	var b strings.Builder

	score := scoreStyle(r.OverallScore).Render(fmt.Sprintf("%d/100", r.OverallScore))
	b.WriteString(i18n.T("audit.score", r.OverallScore))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s  %s\n", score, subtleStyle.Render(r.Timestamp.Local().Format(time.RFC1123))))
	b.WriteString(fmt.Sprintf("  %s %d  %s %d  %s %d  %s %d",
		severityBadge(model.SeverityCritical), r.Critical,
		severityBadge(model.SeverityHigh), r.High,
		severityBadge(model.SeverityMedium), r.Medium,
		severityBadge(model.SeverityLow), r.Low))

	if r.ScoreChange != nil {
		change := *r.ScoreChange
		style := goodStyle
		if change < 0 {
			style = badStyle
		}
		b.WriteString("\n  " + style.Render(fmt.Sprintf("%+d", change)) + subtleStyle.Render(fmt.Sprintf(" since audit at score %d", *r.PreviousScore)))
	}

	for _, issue := range collectIssues(r.Details) {
		b.WriteString(fmt.Sprintf("\n  %s %s", severityBadge(issue.Severity), issue.Description))
		if len(issue.Affected) > 0 {
			b.WriteString(subtleStyle.Render(" (" + strings.Join(issue.Affected, ", ") + ")"))
		}
	}
	return b.String()
}

// collectIssues flattens the detail sections into one display list.
func collectIssues(d model.AuditDetails) []model.Issue {
	issues := make([]model.Issue, 0, len(d.Credential.Issues)+len(d.Environment)+1)
	issues = append(issues, d.Credential.Issues...)
	issues = append(issues, d.Environment...)
	switch d.Encryption.Status {
	case model.EncryptionUnhealthy:
		issues = append(issues, model.Issue{Severity: model.SeverityCritical, Category: "encryption", Description: d.Encryption.Detail})
	case model.EncryptionDegraded:
		issues = append(issues, model.Issue{Severity: model.SeverityMedium, Category: "encryption", Description: d.Encryption.Detail})
	}
	return issues
}

// renderHistory formats the audit history window with its trend statistics.
func renderHistory(days int, result model.HistoryQueryResult) string {
	if len(result.Records) == 0 {
		return i18n.T("history.empty")
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(i18n.T("history.header", days)))
	b.WriteString("\n")
	b.WriteString(subtleStyle.Render(i18n.T("history.trends",
		result.Trends.AverageScore, result.Trends.ScoreDelta, result.Trends.CriticalDelta)))
	b.WriteString("\n")

	for _, r := range result.Records {
		score := scoreStyle(r.OverallScore).Render(fmt.Sprintf("%3d", r.OverallScore))
		line := fmt.Sprintf("  %s  %s  %dC %dH %dM %dL",
			r.Timestamp.Local().Format("2006-01-02 15:04"), score,
			r.Critical, r.High, r.Medium, r.Low)
		if r.ScoreChange != nil && *r.ScoreChange != 0 {
			style := goodStyle
			if *r.ScoreChange < 0 {
				style = badStyle
			}
			line += "  " + style.Render(fmt.Sprintf("%+d", *r.ScoreChange))
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderAlerts formats an alert list. When includeResolved is set, resolved
// alerts are shown with their resolution time instead of being hidden.
func renderAlerts(alerts []model.SecurityAlert, includeResolved bool) string {
	shown := alerts
	if !includeResolved {
		shown = shown[:0:0]
		for _, a := range alerts {
			if !a.Resolved {
				shown = append(shown, a)
			}
		}
	}
	if len(shown) == 0 {
		return i18n.T("alerts.none")
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(i18n.T("alerts.header")))
	b.WriteString("\n")
	for _, a := range shown {
		b.WriteString(fmt.Sprintf("  %s %s  %s\n", severityBadge(a.Severity), a.Title, subtleStyle.Render(a.ID)))
		b.WriteString(fmt.Sprintf("           %s\n", a.Description))
		if len(a.AffectedComponents) > 0 {
			b.WriteString(subtleStyle.Render("           affects: "+strings.Join(a.AffectedComponents, ", ")) + "\n")
		}
		if a.Resolved && a.ResolvedAt != nil {
			b.WriteString(goodStyle.Render("           resolved "+a.ResolvedAt.Local().Format(time.RFC1123)) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderStatus formats the service health summary plus the latest score.
func renderStatus(health model.HealthStatus, window model.HistoryQueryResult) string {
	var lines []string

	if health.Running {
		lines = append(lines, goodStyle.Render(i18n.T("status.running")))
	} else {
		lines = append(lines, subtleStyle.Render(i18n.T("status.stopped")))
	}

	if health.LastAuditAt != nil {
		lines = append(lines, i18n.T("status.last_audit", health.LastAuditAt.Local().Format(time.RFC1123)))
	} else {
		lines = append(lines, i18n.T("status.never_audited"))
	}

	if n := len(window.Records); n > 0 {
		latest := window.Records[n-1]
		score := scoreStyle(latest.OverallScore).Render(fmt.Sprintf("%d/100", latest.OverallScore))
		lines = append(lines, fmt.Sprintf("score: %s  (%dC %dH %dM %dL)",
			score, latest.Critical, latest.High, latest.Medium, latest.Low))
	}

	countLine := i18n.T("status.active_alerts", health.ActiveAlertCount)
	if health.ActiveAlertCount > 0 {
		countLine = badStyle.Render(countLine)
	}
	lines = append(lines, countLine)
	return strings.Join(lines, "\n")
}

// renderKeys formats the tracked key inventory.
func renderKeys(keys []model.TrackedKey) string {
	if len(keys) == 0 {
		return i18n.T("keys.empty")
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(i18n.T("keys.list_header")))
	b.WriteString("\n")
	now := time.Now()
	for _, k := range keys {
		line := fmt.Sprintf("  %-30s %-12s", k.Identity, k.Algorithm)
		switch {
		case k.IsExpired(now):
			line += badStyle.Render("expired " + k.ExpiresAt.Format("2006-01-02"))
		case k.ExpiresAt != nil:
			line += subtleStyle.Render("expires " + k.ExpiresAt.Format("2006-01-02"))
		default:
			line += subtleStyle.Render("no expiry")
		}
		if k.LastSeenAt != nil {
			line += subtleStyle.Render("  last seen " + k.LastSeenAt.Format("2006-01-02"))
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
