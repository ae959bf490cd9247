package server

import (
	"bytes"
	"fmt"
)

// liveReloadScript is the JavaScript injected into HTML pages to reload the
// browser when the site is rebuilt. The %d is the WebSocket port.
const liveReloadScript = `<script>
(function() {
  var url = "ws://" + location.hostname + ":%d/__gallium/ws";
  var ws;
  function connect() {
    ws = new WebSocket(url);
    ws.onmessage = function(e) {
      if (e.data === "reload") {
        location.reload();
      }
    };
    ws.onclose = function() {
      setTimeout(connect, 1000);
    };
  }
  connect();
})();
</script>`

// InjectLiveReload inserts the live reload script into an HTML document,
// immediately before </body> when present, otherwise appended at the end.
func InjectLiveReload(html []byte, port int) []byte {
	script := fmt.Appendf(nil, liveReloadScript, port)

	idx := bytes.LastIndex(html, []byte("</body>"))
	if idx == -1 {
		return append(html, script...)
	}

	result := make([]byte, 0, len(html)+len(script))
	result = append(result, html[:idx]...)
	result = append(result, script...)
	result = append(result, html[idx:]...)
	return result
}
