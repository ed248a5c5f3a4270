// Package dompdf converts a visual document tree into a paginated,
// print-ready A4 PDF.
//
// A conversion snapshots the tree, stages the copy in an invisible
// container, pushes elements that would be cut by a page boundary onto the
// next page, rasterizes the container into one tall image and slices that
// image into pages. Blank pages are dropped.
//
// # Converting
//
// For one-off conversions use the package-level helpers:
//
//	res, err := dompdf.RenderHTML(ctx, "<h1>Hello</h1>", dompdf.ConvertOptions{})
//
// For repeated conversions create a [Converter]:
//
//	c, err := dompdf.NewConverter(dompdf.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	err = c.Convert(ctx, root, dompdf.ConvertOptions{
//	    Filename:          "report.pdf",
//	    ExcludeClassNames: []string{"no-print"},
//	}, func() { fmt.Println("done") })
//
// The tree is a [dom.Node], usually obtained from [dom.Parse]. Live widget
// state on the tree (canvas pixels, form values, scroll offsets) is carried
// into the output.
//
// # Engines
//
// By default conversions run on the in-process [layout] engine, which
// needs no browser. For full CSS fidelity use headless Chrome:
//
//	c, err := dompdf.NewChromeConverter(dompdf.WithNoSandbox())
//
// Chrome or Chromium must be available in PATH, or use [WithAutoDownload].
// Any [stage.Engine] can be plugged in with [WithEngine].
//
// # Results
//
// A [Result] gives flexible access to the generated PDF bytes:
//
//	res.Bytes()                       // []byte
//	res.Base64()                      // base64 string (RFC 4648)
//	res.Reader()                      // *bytes.Reader
//	res.WriteTo(w)                    // io.WriterTo
//	res.WriteToFile("out.pdf", 0o644) // atomic write to disk
//	res.Pages()                       // page count
package dompdf

