// Package docrender converts HTML documents to PDF with a choice of two
// layout engines and two delivery modes.
//
// # Engines
//
// The basic backend ([BasicBackend]) places simple inline markup (bold,
// italic, underline, links, line breaks) with a pure Go PDF writer. It
// needs nothing installed and is registered by default.
//
// The chrome backend ([ChromeBackend]) prints the document from headless
// Chrome over the DevTools protocol and supports full CSS. It starts a
// browser process, so it has to be created and registered explicitly:
//
//	chrome, err := docrender.NewChromeBackend(docrender.WithAutoDownload())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r := docrender.NewRenderer(docrender.WithBackend(chrome))
//	defer r.Close()
//
// # Operations
//
// [Renderer.Render] runs a [Request] on the backend it names. The preset
// operations fix the engine and its page defaults:
//
//	r.RenderBasic(ctx, w, req)    // basic, A4, Helvetica 6pt
//	r.RenderFull(ctx, w, req)     // chrome, Letter, raised memory ceiling
//	r.RenderWithLogo(ctx, w, req) // basic, portrait Letter, header logo
//
// # Delivery
//
// With [InlineStream] the PDF is written to w; an [net/http.ResponseWriter]
// additionally gets inline Content-Disposition headers. With
// [PersistToPath] the PDF is written atomically under the renderer's
// output directory and the absolute path is returned in [Outcome].
//
// # Errors
//
// Failures are returned as [*Error] and match exactly one of [ErrRender],
// [ErrResource], [ErrIO] or [ErrInvalid] with [errors.Is].
package docrender
