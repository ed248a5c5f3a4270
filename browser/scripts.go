package browser

import (
	"encoding/json"
	"strings"
)

const (
	containerID = "dompdf-stage"
	idAttr      = "data-dompdf-id"
)

// documentTemplate wraps the replica markup. %s is the container style,
// the second %s the replica.
const documentTemplate = `<!DOCTYPE html>
<html><head><meta charset="utf-8">
<style>html, body { margin: 0; padding: 0; background: #fff; }</style>
<script>window.__dompdf = (id) => document.querySelector('[` + idAttr + `="' + id + '"]');</script>
</head><body><div id="` + containerID + `" style="%s">%s</div></body></html>`

const containerBoxJS = `function() {
	const r = document.getElementById("` + containerID + `").getBoundingClientRect();
	return {x: r.left + window.scrollX, y: r.top + window.scrollY, width: r.width, height: r.height};
}`

const rectJS = `function(id) {
	const c = document.getElementById("` + containerID + `").getBoundingClientRect();
	const e = window.__dompdf(id);
	if (!e) return null;
	const r = e.getBoundingClientRect();
	return {top: r.top - c.top, bottom: r.bottom - c.top, left: r.left - c.left, right: r.right - c.left};
}`

const insertSpacerJS = `function(ref, id, style) {
	const r = window.__dompdf(ref);
	if (!r || !r.parentNode) return false;
	const s = document.createElement("div");
	s.setAttribute("` + idAttr + `", id);
	s.setAttribute("style", style);
	r.parentNode.insertBefore(s, r);
	return true;
}`

const scrollJS = `function(id, top, left) {
	const e = window.__dompdf(id);
	if (!e) return false;
	e.scrollTop = top;
	e.scrollLeft = left;
	return true;
}`

const surfaceJS = `async function(id, url) {
	const c = window.__dompdf(id);
	if (!c || !c.getContext) return false;
	const img = new Image();
	img.src = url;
	await img.decode();
	c.getContext("2d").drawImage(img, 0, 0);
	return true;
}`

const setSrcJS = `function(srcs) {
	for (const [id, src] of Object.entries(srcs)) {
		const e = window.__dompdf(id);
		if (e && e.getAttribute("src") !== src) e.setAttribute("src", src);
	}
	return true;
}`

const waitImagesJS = `async function() {
	await Promise.all(Array.from(document.images).map((i) =>
		i.complete ? null : new Promise((done) => { i.onload = i.onerror = done; })));
	return true;
}`

const hideJS = `function(ids, hide) {
	for (const id of ids) {
		const e = window.__dompdf(id);
		if (!e) continue;
		if (hide) {
			e.dataset.dompdfOpacity = e.style.getPropertyValue("opacity");
			e.style.setProperty("opacity", "0", "important");
		} else {
			e.style.setProperty("opacity", e.dataset.dompdfOpacity || "");
			delete e.dataset.dompdfOpacity;
		}
	}
	return true;
}`

// call renders an invocation of the function expression fn with args
// encoded as JSON literals.
func call(fn string, args ...any) (string, error) {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(fn)
	b.WriteString(")(")
	for i, a := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		enc, err := json.Marshal(a)
		if err != nil {
			return "", err
		}
		b.Write(enc)
	}
	b.WriteString(")")
	return b.String(), nil
}
