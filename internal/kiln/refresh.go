package ik

import (
	"bytes"
	"net/http"
)

const (
	internalPrefix = "/__kiln/"
	eventsPath     = internalPrefix + "events"
	wsPath         = internalPrefix + "ws"
	clientPath     = internalPrefix + "client.js"
)

var clientScriptTag = []byte(`<script src="` + clientPath + `"></script>`)

// injectClientScript adds the live-reload client to a page, before the
// closing body tag when there is one.
func injectClientScript(page []byte) []byte {
	i := bytes.LastIndex(bytes.ToLower(page), []byte("</body>"))
	if i < 0 {
		return append(append([]byte(nil), page...), clientScriptTag...)
	}
	out := make([]byte, 0, len(page)+len(clientScriptTag))
	out = append(out, page[:i]...)
	out = append(out, clientScriptTag...)
	return append(out, page[i:]...)
}

func clientScriptHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(clientScript))
}

// changeTypes: "css", "reload"
const clientScript = `(() => {
	const scrollYKey = "__kiln_devScrollY";
	const scrollY = sessionStorage.getItem(scrollYKey);
	if (scrollY) {
		sessionStorage.removeItem(scrollYKey);
		window.addEventListener("load", () => window.scrollTo({ top: Number(scrollY) }));
	}

	function handle(data) {
		const { changeType, cssURL } = JSON.parse(data);
		if (changeType === "reload") {
			if (window.scrollY > 0) {
				sessionStorage.setItem(scrollYKey, String(window.scrollY));
			}
			window.location.reload();
			return;
		}
		if (changeType === "css") {
			const base = cssURL.split("?")[0];
			for (const oldLink of document.querySelectorAll('link[rel="stylesheet"]')) {
				const href = new URL(oldLink.href, window.location.href);
				if (!href.pathname.endsWith(base)) {
					continue;
				}
				const newLink = oldLink.cloneNode();
				newLink.href = cssURL;
				newLink.onload = () => oldLink.remove();
				oldLink.parentNode.insertBefore(newLink, oldLink.nextSibling);
			}
		}
	}

	function useEventSource() {
		const es = new EventSource("` + eventsPath + `");
		es.onmessage = (e) => handle(e.data);
		window.addEventListener("beforeunload", () => es.close());
	}

	if (!("WebSocket" in window)) {
		useEventSource();
		return;
	}
	const proto = window.location.protocol === "https:" ? "wss://" : "ws://";
	const ws = new WebSocket(proto + window.location.host + "` + wsPath + `");
	let opened = false;
	ws.onopen = () => { opened = true; };
	ws.onmessage = (e) => handle(e.data);
	ws.onclose = () => {
		if (!opened) {
			useEventSource();
		}
	};
	window.addEventListener("beforeunload", () => ws.close());
})();
`
