package console

import (
	"bytes"
	"fmt"
	"html/template"
)

// compiledPage is parsed at init time to fail fast on template errors.
var compiledPage *template.Template

func init() {
	compiledPage = template.Must(template.New("console").Parse(pageTemplate))
}

// PageOptions configures the console page.
type PageOptions struct {
	Title         string
	WebSocketPath string
}

// GeneratePage renders the console HTML page.
func GeneratePage(opts PageOptions) (string, error) {
	if opts.WebSocketPath == "" {
		return "", fmt.Errorf("websocket path cannot be empty")
	}
	if opts.Title == "" {
		opts.Title = "vg console"
	}

	var buf bytes.Buffer
	if err := compiledPage.Execute(&buf, opts); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    * {
      box-sizing: border-box;
    }
    body {
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
      margin: 0;
      display: flex;
      flex-direction: column;
      height: 100vh;
      background: #f5f5f5;
    }
    #toolbar {
      display: flex;
      gap: 8px;
      padding: 8px;
      background: #2b2d42;
    }
    #toolbar input {
      flex: 1;
      padding: 4px 8px;
      font-family: monospace;
    }
    #stage {
      position: relative;
      flex: 1;
      min-height: 0;
    }
    #graph {
      display: block;
      width: 100%;
      height: 100%;
      background: white;
    }
    #detail {
      position: absolute;
      top: 12px;
      right: 12px;
      display: none;
      width: 320px;
      max-height: calc(100% - 24px);
      overflow: auto;
      background: white;
      border: 1px solid #ccc;
      border-radius: 4px;
      padding: 8px 12px;
      box-shadow: 0 2px 8px rgba(0,0,0,0.15);
      font-size: 13px;
    }
    #detail .type {
      font-size: 10px;
      text-transform: uppercase;
      color: #888;
    }
    #detail .close {
      float: right;
      cursor: pointer;
      border: none;
      background: none;
      font-size: 16px;
    }
    #detail dt {
      font-weight: bold;
      margin-top: 4px;
    }
    #detail dd {
      margin: 0 0 0 8px;
      color: #555;
      word-break: break-word;
    }
    #status {
      position: absolute;
      left: 12px;
      bottom: 8px;
      font-size: 12px;
      color: #888;
    }
  </style>
</head>
<body>
  <form id="toolbar">
    <input id="cypher" placeholder="MATCH (v:Vulnerability)-[r]-(m) RETURN v, r, m LIMIT 50">
    <input id="search" placeholder="similar to...">
    <button type="submit">Run</button>
  </form>
  <div id="stage">
    <canvas id="graph"></canvas>
    <div id="detail"></div>
    <div id="status">connecting</div>
  </div>
  <script>
    (function() {
      const canvas = document.getElementById('graph');
      const stage = document.getElementById('stage');
      const ctx = canvas.getContext('2d');
      const detail = document.getElementById('detail');
      const status = document.getElementById('status');
      const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
      const observer = typeof ResizeObserver !== 'undefined' ? 'element' : 'window';
      const ws = new WebSocket(proto + location.host + "{{.WebSocketPath}}?observer=" + observer);

      function send(msg) {
        if (ws.readyState === WebSocket.OPEN) ws.send(JSON.stringify(msg));
      }

      function escapeHtml(str) {
        return String(str).replace(/&/g, '&amp;')
                          .replace(/</g, '&lt;')
                          .replace(/>/g, '&gt;')
                          .replace(/"/g, '&quot;');
      }

      // Size reporting: element observer, else window resize.
      function reportSize() {
        const w = stage.clientWidth, h = stage.clientHeight;
        if (w > 0 && h > 0) send({type: 'resize', width: w, height: h, source: observer});
      }
      if (observer === 'element') {
        new ResizeObserver(reportSize).observe(stage);
      } else {
        window.addEventListener('resize', reportSize);
      }

      function paint(op) {
        if (op.f) { ctx.fillStyle = op.f; ctx.fill(); }
        if (op.s && op.w) { ctx.strokeStyle = op.s; ctx.lineWidth = op.w; ctx.stroke(); }
      }

      function replay(frame) {
        const dpr = window.devicePixelRatio || 1;
        if (canvas.width !== frame.width * dpr || canvas.height !== frame.height * dpr) {
          canvas.width = frame.width * dpr;
          canvas.height = frame.height * dpr;
        }
        ctx.setTransform(dpr, 0, 0, dpr, 0, 0);
        ctx.textAlign = 'center';
        ctx.textBaseline = 'middle';
        for (const op of frame.ops) {
          const a = op.a || [];
          switch (op.op) {
          case 'clear':
            ctx.fillStyle = op.f || '#ffffff';
            ctx.fillRect(0, 0, frame.width, frame.height);
            break;
          case 'font':
            ctx.font = a[0] + 'px "Go", sans-serif';
            break;
          case 'save': ctx.save(); break;
          case 'restore': ctx.restore(); break;
          case 'translate': ctx.translate(a[0], a[1]); break;
          case 'rotate': ctx.rotate(a[0]); break;
          case 'circle':
            ctx.beginPath();
            ctx.arc(a[0], a[1], a[2], 0, 2 * Math.PI);
            paint(op);
            break;
          case 'line':
            ctx.beginPath();
            ctx.moveTo(a[0], a[1]);
            ctx.lineTo(a[2], a[3]);
            paint(op);
            break;
          case 'rect':
            ctx.beginPath();
            ctx.rect(a[0], a[1], a[2], a[3]);
            paint(op);
            break;
          case 'poly':
            ctx.beginPath();
            ctx.moveTo(a[0], a[1]);
            for (let i = 2; i < a.length; i += 2) ctx.lineTo(a[i], a[i + 1]);
            ctx.closePath();
            paint(op);
            break;
          case 'text':
            ctx.fillStyle = op.f || '#000000';
            ctx.fillText(op.t, a[0], a[1], Math.ceil(a[2]) + 1);
            break;
          }
        }
      }

      function showDetail(node) {
        let html = '<button class="close" title="Close">&times;</button>';
        html += '<div class="type">' + escapeHtml(node.label) + '</div>';
        html += '<dl><dt>id</dt><dd>' + escapeHtml(node.id) + '</dd>';
        const props = node.properties || {};
        for (const key of Object.keys(props).sort()) {
          const v = props[key];
          html += '<dt>' + escapeHtml(key) + '</dt><dd>' +
            escapeHtml(typeof v === 'object' ? JSON.stringify(v) : v) + '</dd>';
        }
        detail.innerHTML = html + '</dl>';
        detail.style.display = 'block';
        detail.querySelector('.close').onclick = function() { send({type: 'dismiss'}); };
      }

      ws.onopen = function() {
        status.textContent = 'connected';
        reportSize();
      };
      ws.onclose = function() { status.textContent = 'disconnected'; };
      ws.onmessage = function(evt) {
        const msg = JSON.parse(evt.data);
        switch (msg.type) {
        case 'frame': replay(msg.frame); break;
        case 'activated': showDetail(msg.node); break;
        case 'cleared': detail.style.display = 'none'; break;
        case 'loaded':
          status.textContent = msg.report.nodes + ' nodes, ' + msg.report.links + ' links';
          break;
        case 'error': status.textContent = msg.error; break;
        }
      };

      // Pointer handling: a press without movement is a click.
      let down = null, moved = false;
      function point(evt) {
        const r = canvas.getBoundingClientRect();
        return {x: evt.clientX - r.left, y: evt.clientY - r.top};
      }
      canvas.addEventListener('mousedown', function(evt) {
        down = point(evt);
        moved = false;
      });
      canvas.addEventListener('mousemove', function(evt) {
        if (!down) return;
        const p = point(evt);
        if (!moved && Math.hypot(p.x - down.x, p.y - down.y) < 3) return;
        if (!moved) send({type: 'drag', x: down.x, y: down.y});
        moved = true;
        send({type: 'drag', x: p.x, y: p.y});
      });
      window.addEventListener('mouseup', function(evt) {
        if (!down) return;
        if (moved) {
          send({type: 'release'});
        } else {
          send({type: 'click', x: down.x, y: down.y});
        }
        down = null;
      });
      window.addEventListener('keydown', function(evt) {
        if (evt.key === 'Escape') send({type: 'dismiss'});
      });

      document.getElementById('toolbar').addEventListener('submit', function(evt) {
        evt.preventDefault();
        const cypher = document.getElementById('cypher').value.trim();
        const text = document.getElementById('search').value.trim();
        if (cypher) send({type: 'query', cypher: cypher});
        else if (text) send({type: 'search', text: text});
      });
    })();
  </script>
</body>
</html>`
