package server

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/starlight-qa/starlight/pkg/report"
	"github.com/starlight-qa/starlight/pkg/star"
	"github.com/starlight-qa/starlight/pkg/storage"
	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"
)

// PageLayout wraps page content with the shared head, navbar and footer.
func PageLayout(title string, navbar g.Node, content g.Node, footer g.Node) g.Node {
	return g.Group([]g.Node{
		g.Raw("<!DOCTYPE html>"),
		h.HTML(h.Lang("en"),
			h.Head(
				h.Meta(h.Charset("UTF-8")),
				h.Meta(h.Name("viewport"), h.Content("width=device-width, initial-scale=1.0")),
				h.TitleEl(g.Text(title)),
				h.Script(h.Src("https://cdn.tailwindcss.com")),
			),
			h.Body(h.Class("bg-slate-950 font-sans antialiased flex flex-col min-h-screen text-slate-300"),
				navbar,
				h.Main(h.Class("flex-grow container mx-auto px-4 py-6"), content),
				footer,
			),
		),
	})
}

func Navbar(currentPath string) g.Node {
	navLink := func(href, label string) g.Node {
		base := "px-3 py-2 rounded-md text-sm font-medium "
		if currentPath == href {
			base += "text-cyan-400 bg-cyan-400/10"
		} else {
			base += "text-slate-400 hover:text-white hover:bg-slate-800/50"
		}
		return h.A(h.Href(href), h.Class(base), g.Text(label))
	}

	return h.Nav(h.Class("bg-slate-900/80 text-white p-4 shadow-lg border-b border-slate-700/50"),
		h.Div(h.Class("container mx-auto flex justify-between items-center"),
			h.A(h.Href("/"), h.Class("text-xl font-bold tracking-tight hover:text-cyan-400"), g.Text("STAR light")),
			h.Div(h.Class("flex items-center space-x-1"),
				navLink("/", "Devices"),
				navLink("/api/categories", "Categories"),
				navLink("/api/teams", "Teams"),
			),
		),
	)
}

func FooterEl() g.Node {
	return h.Footer(h.Class("bg-slate-900/50 text-slate-500 border-t border-slate-800/50"),
		h.Div(h.Class("container mx-auto px-4 py-4 text-sm"),
			g.Textf("starlight · %s", time.Now().Format("2006-01-02 15:04")),
		),
	)
}

func errorBox(title string, err error) g.Node {
	return h.Div(h.Class("error bg-red-900/20 border border-red-800/50 text-red-400 px-4 py-3 rounded-lg mb-6"),
		h.Strong(g.Text(title+": ")),
		g.Text(err.Error()),
	)
}

// paginate clamps page into range the way the device list always has: bad
// input shows the first page, pages past the end show the last one.
func paginate(total, perPage int, rawPage string) (page, pages, from, to int) {
	pages = (total + perPage - 1) / perPage
	if pages == 0 {
		pages = 1
	}
	page, err := strconv.Atoi(rawPage)
	if err != nil || page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	from = (page - 1) * perPage
	to = min(from+perPage, total)
	return page, pages, from, to
}

// IndexContent renders one page of the device list.
func IndexContent(devices []star.Device, loadErr error, rawPage string) g.Node {
	if loadErr != nil {
		return h.Div(
			h.H1(h.Class("text-2xl font-bold text-white mb-6"), g.Text("Devices")),
			errorBox("Error loading devices", loadErr),
		)
	}

	page, pages, from, to := paginate(len(devices), DevicesPerPage, rawPage)
	rows := lo.Map(devices[from:to], func(d star.Device, _ int) g.Node {
		return h.Tr(h.Class("device border-b border-slate-800 hover:bg-slate-800/40"),
			h.Td(h.Class("px-3 py-2"),
				h.A(h.Href("/view/"+url.PathEscape(d.Name)), h.Class("text-cyan-400 hover:underline"), g.Text(d.Name)),
			),
			h.Td(h.Class("px-3 py-2 text-sm"), lastUpdate(d.LastUpdate)),
		)
	})

	return h.Div(
		h.H1(h.Class("text-2xl font-bold text-white mb-2"), g.Text("Devices")),
		h.P(h.Class("summary text-sm text-slate-500 mb-4"), g.Textf("%d devices · page %d of %d", len(devices), page, pages)),
		h.Table(h.Class("w-full text-left"),
			h.THead(h.Tr(
				h.Th(h.Class("px-3 py-2"), g.Text("Device")),
				h.Th(h.Class("px-3 py-2"), g.Text("Last update")),
			)),
			h.TBody(g.Group(rows)),
		),
		pagination(page, pages),
	)
}

func lastUpdate(t time.Time) g.Node {
	if t.IsZero() {
		return h.Span(h.Class("text-slate-600"), g.Text("never"))
	}
	return h.Span(
		h.TitleAttr(humanize.Time(t)),
		g.Text(t.Format("2006-01-02 15:04")),
		h.Span(h.Class("text-slate-500 ml-2"), g.Textf("(%s)", humanize.Time(t))),
	)
}

func pagination(page, pages int) g.Node {
	if pages <= 1 {
		return nil
	}
	link := func(p int, label string) g.Node {
		classes := "px-3 py-1.5 text-sm font-medium rounded-full"
		switch {
		case p < 1 || p > pages:
			return h.Span(h.Class(classes+" bg-slate-800/50 text-slate-600 cursor-not-allowed"), g.Text(label))
		case p == page:
			classes += " bg-cyan-600 text-white"
		default:
			classes += " bg-slate-800/50 text-slate-400 hover:bg-slate-700"
		}
		return h.A(h.Href(fmt.Sprintf("/?page=%d", p)), h.Class(classes), g.Text(label))
	}

	items := []g.Node{link(page-1, "Previous")}
	for p := max(1, page-2); p <= min(pages, page+2); p++ {
		items = append(items, link(p, strconv.Itoa(p)))
	}
	items = append(items, link(page+1, "Next"))
	return h.Nav(h.Class("pagination flex gap-2 justify-center mt-6"), g.Group(items))
}

var variantFields = []report.Field{
	report.FieldUSKUv2,
	report.FieldUSKUv3,
	report.FieldMRUSKUv2,
	report.FieldMRUSKUv3,
}

// filterForm renders the report filters as a GET form on the device page.
func filterForm(device string, prefs viewPrefs, categories []storage.Category, teams []storage.Team) g.Node {
	f := prefs.Filters
	explicit := prefs.TeamTitles == nil && f.Categories != nil
	checked := lo.SliceToMap(f.Categories, func(c string) (string, bool) { return c, true })

	teamOptions := []g.Node{h.Option(h.Value(""), g.Text("No team"))}
	for _, t := range teams {
		ref := strconv.FormatInt(t.ID, 10)
		teamOptions = append(teamOptions, h.Option(h.Value(ref), g.Text(t.Name), g.If(prefs.Team == ref || prefs.Team == t.Name, h.Selected())))
	}

	priorityOptions := lo.Map([]report.Priority{report.PriorityNone, report.P0, report.P1, report.P2}, func(p report.Priority, _ int) g.Node {
		label := string(p)
		if p == report.PriorityNone {
			label = "Any priority"
		}
		return h.Option(h.Value(string(p)), g.Text(label), g.If(f.Priority == p, h.Selected()))
	})

	variantOptions := []g.Node{h.Option(h.Value(""), g.Text("Any variant"))}
	for _, field := range variantFields {
		name := field.String()
		variantOptions = append(variantOptions, h.Option(h.Value(name), g.Text(name), g.If(f.Variant == name, h.Selected())))
	}

	categoryBoxes := []g.Node{
		checkbox(report.KeyCategories, "", "All categories", explicit && len(f.Categories) == 0),
	}
	for _, c := range categories {
		categoryBoxes = append(categoryBoxes, checkbox(report.KeyCategories, c.Title, c.Title, explicit && checked[c.Title]))
	}

	selectClass := h.Class("bg-slate-800 border border-slate-700 rounded-md px-2 py-1 text-sm")
	return h.Form(h.Method("GET"), h.Action("/view/"+url.PathEscape(device)), h.ID("filters"),
		h.Class("bg-slate-900/60 border border-slate-800 rounded-xl p-4 mb-6 space-y-3"),
		h.Div(h.Class("flex flex-wrap gap-3 items-center"),
			h.Select(h.Name(keyTeam), selectClass, g.Group(teamOptions)),
			h.Select(h.Name(report.KeyPriority), selectClass, g.Group(priorityOptions)),
			h.Select(h.Name(report.KeyVariant), selectClass, g.Group(variantOptions)),
			checkbox(report.KeyTC911, "on", "tc911", f.TC911),
			checkbox(report.KeyOnlyBlank, "on", "Only blank", f.OnlyBlank),
			h.Button(h.Type("submit"), h.Class("bg-cyan-600 hover:bg-cyan-500 text-white text-sm px-4 py-1.5 rounded-md"), g.Text("Apply")),
		),
		g.If(prefs.TeamTitles != nil,
			h.P(h.Class("text-xs text-slate-500"), g.Textf("Team categories: %v", prefs.TeamTitles)),
		),
		h.Div(h.Class("flex flex-wrap gap-x-4 gap-y-1"), g.Group(categoryBoxes)),
	)
}

func checkbox(name, value, label string, on bool) g.Node {
	return h.Label(h.Class("flex items-center gap-1.5 text-sm text-slate-300"),
		h.Input(h.Type("checkbox"), h.Name(name), h.Value(value), g.If(on, h.Checked())),
		g.Text(label),
	)
}

func issueBadge(issue report.Issue) g.Node {
	var colors string
	switch issue {
	case report.MissingComment:
		colors = "bg-red-900/50 text-red-300 border border-red-800"
	case report.MissingDefectType:
		colors = "bg-amber-900/50 text-amber-300 border border-amber-800"
	default:
		return nil
	}
	return h.Span(h.Class("issue inline-flex px-2 py-0.5 text-[11px] font-semibold rounded-md "+colors), g.Text(issue.String()))
}

func resultCell(v string) g.Node {
	colors := "text-slate-400"
	switch v {
	case "Pass":
		colors = "text-emerald-400"
	case "Fail":
		colors = "text-red-400"
	case "NS", "Block", "NT":
		colors = "text-amber-400"
	}
	return h.Td(h.Class("px-2 py-1 "+colors), g.Text(v))
}

// ViewContent renders the report page of one device.
func ViewContent(device string, prefs viewPrefs, categories []storage.Category, teams []storage.Team, res *report.Result, buildErr error) g.Node {
	content := []g.Node{
		h.H1(h.Class("text-2xl font-bold text-white mb-4"), g.Text(device)),
		filterForm(device, prefs, categories, teams),
	}
	if buildErr != nil {
		return h.Div(append(content, errorBox("Error building report", buildErr))...)
	}

	rows := lo.Map(res.TestCases, func(tc report.TestCase, _ int) g.Node {
		return h.Tr(h.Class("testcase border-b border-slate-800 align-top"),
			h.Td(h.Class("px-2 py-1 text-slate-500"), g.Text(tc.DisplayID)),
			h.Td(h.Class("px-2 py-1"), g.Text(tc.Category())),
			h.Td(h.Class("px-2 py-1 text-slate-500"), g.Text(tc.Value(report.FieldDisplayOrder))),
			h.Td(h.Class("px-2 py-1 text-white"), g.Text(tc.Name())),
			h.Td(h.Class("px-2 py-1"), g.Text(tc.Priority())),
			resultCell(tc.Value(report.FieldPreviousVersionResult)),
			resultCell(tc.LastVersionResult()),
			h.Td(h.Class("px-2 py-1"), issueBadge(tc.Issue)),
			h.Td(h.Class("px-2 py-1 text-sm"), g.Text(tc.Value(report.FieldCustomerComments))),
			h.Td(h.Class("px-2 py-1 text-sm"), g.Text(tc.Value(report.FieldMELDefectType))),
		)
	})

	content = append(content,
		h.P(h.Class("summary text-sm text-slate-400 mb-3"),
			g.Textf("%d test cases · %s vs %s · built in %s s", res.Total, res.CurrentVersion, res.PreviousVersion, res.ElapsedSeconds()),
		),
		h.Table(h.Class("w-full text-left text-sm"),
			h.THead(h.Tr(
				h.Th(h.Class("px-2 py-1"), g.Text("#")),
				h.Th(h.Class("px-2 py-1"), g.Text("Category")),
				h.Th(h.Class("px-2 py-1"), g.Text("Order")),
				h.Th(h.Class("px-2 py-1"), g.Text("Test case")),
				h.Th(h.Class("px-2 py-1"), g.Text("Priority")),
				h.Th(h.Class("px-2 py-1"), g.Text(res.PreviousVersion)),
				h.Th(h.Class("px-2 py-1"), g.Text(res.CurrentVersion)),
				h.Th(h.Class("px-2 py-1"), g.Text("Issue")),
				h.Th(h.Class("px-2 py-1"), g.Text("Comments")),
				h.Th(h.Class("px-2 py-1"), g.Text("Defect type")),
			)),
			h.TBody(g.Group(rows)),
		),
	)
	return h.Div(content...)
}
