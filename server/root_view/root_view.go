package root_view

import (
	"context"
	"html/template"

	"pathsim/server/cell_views"
	"pathsim/server/fastview"
	"pathsim/simulator"
)

// RootView is the main page's index.html, which is the container for all the
// view components, the wiring for their channels, etc.
type RootView struct {
	views *fastview.Views
}

// NewRootView creates the main page and the views it contains, fed by the passed frames.
// The views stop when ctx is cancelled.
func NewRootView(
	ctx context.Context,
	frames <-chan simulator.Frame,
) (*RootView, error) {
	views, err := fastview.NewViewBuilder[simulator.Frame, cell_views.Arena]().
		WithContext(ctx).
		WithModel(frames, cell_views.Convert).
		WithView(func(
			done <-chan struct{},
			arenas <-chan cell_views.Arena) fastview.ViewComponent {
			return cell_views.NewPanelView(done, arenas)
		}).
		WithView(func(
			done <-chan struct{},
			arenas <-chan cell_views.Arena) fastview.ViewComponent {
			return cell_views.NewArenaView(done, arenas)
		}).
		Build()
	if err != nil {
		return nil, err
	}
	return &RootView{views: views}, nil
}

// Updates returns the main ele-update channel for all the views.
func (rv *RootView) Updates() <-chan []fastview.EleUpdate {
	return rv.views.Updates()
}

// FuncMap holds the funcs the child views' templates depend on.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"add":  func(i, j int) int { return i + j },
		"sub":  func(i, j int) int { return i - j },
		"mult": func(i, j int) int { return i * j },
		"div":  func(i, j int) int { return i / j },
		"max": func(i, j int) int {
			if i > j {
				return i
			}
			return j
		},
	}
}

// Parse builds the main page's template, with websocket bootstrap code, and returns its name.
// It also sets up the func-map that the child components depend on.
func (rv *RootView) Parse(
	parent *template.Template,
) (name string, err error) {
	rt := parent.Funcs(FuncMap())

	viewTemplates := []string{}
	for _, vc := range rv.views.Components {
		tname, parseErr := vc.Parse(rt)
		if parseErr != nil {
			err = parseErr
			return
		}
		viewTemplates = append(viewTemplates, tname)
	}

	var bodySpec string
	for _, tname := range viewTemplates {
		bodySpec += (`{{ template "` + tname + `" . }}`)
	}

	// The main template bootstraps the rest: sets up client websocket and updates, aggregates views.
	name = "mainpage"
	indexTemplate := `
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<meta charset="utf-8">
			<title>Path Simulator</title>
			<link rel="icon" href="data:,">
			<style>
				#arena rect[data-clickable="true"] { cursor: pointer; }
				#arena rect[data-clickable="true"][data-kind="empty"]:hover { fill: #fbbf24; }
				#toasts { position: fixed; top: 16px; right: 16px; display: flex; flex-direction: column; gap: 6px; font-family: sans-serif; }
				.toast { padding: 8px 14px; border-radius: 4px; color: white; }
				.toast-info { background: #2563eb; }
				.toast-success { background: #16a34a; }
				.toast-error { background: #dc2626; }
			</style>
			<!--This is the client bootstrap code by which the server pushes new data to the view via websocket.-->
			<script>
				const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
				ws.onopen = function (event) {
					console.log("Web socket opened")
				};

				ws.onerror = function (event) {
					console.log('WebSocket error: ', event);
				};

				function sendCommand(cmd) {
					if (ws.readyState === WebSocket.OPEN) {
						ws.send(JSON.stringify(cmd));
					}
				}

				let lastNotice = null;
				function showToast(level, message) {
					const toast = document.createElement("div");
					toast.className = "toast toast-" + level;
					toast.textContent = message;
					document.getElementById("toasts").appendChild(toast);
					setTimeout(() => toast.remove(), 3000);
				}

				function checkNotice() {
					const notice = document.getElementById("notice");
					if (notice === null || notice.dataset.id === lastNotice) {
						return;
					}
					lastNotice = notice.dataset.id;
					if (notice.textContent !== "") {
						showToast(notice.dataset.level, notice.textContent);
					}
				}

				// When the server pushes view updates, find these eles and update them.
				ws.onmessage = function (event) {
					const items = JSON.parse(event.data);
					for (const update of items) {
						const ele = document.getElementById(update.EleId);
						if (ele === null) {
							continue;
						}
						for (const op of update.Ops) {
							if (op.Key === "textContent") {
								ele.textContent = op.Value;
							} else if (op.Key === "value") {
								ele.value = op.Value;
							} else if (op.Key === "disabled") {
								ele.disabled = op.Value === "true";
							} else {
								ele.setAttribute(op.Key, op.Value);
							}
						}
					}
					checkNotice();
				}

				document.addEventListener("DOMContentLoaded", function () {
					// Notices rendered with the page are old news.
					lastNotice = document.getElementById("notice").dataset.id;
					document.getElementById("arena").addEventListener("click", function (event) {
						const cell = event.target;
						if (cell.dataset && cell.dataset.clickable === "true") {
							sendCommand({kind: "cell", x: parseInt(cell.dataset.x, 10), y: parseInt(cell.dataset.y, 10)});
						}
					});
				});
			</script>
		</head>
		<body style="display:flex; flex-direction:row;">
		` + bodySpec + `
		<div id="toasts"></div>
		</body></html>
	{{ end }}
	`

	_, err = rt.Parse(indexTemplate)
	return
}
