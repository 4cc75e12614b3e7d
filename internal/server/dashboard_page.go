package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const dashboardPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>AccessGuard · Risk Dashboard</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        :root {
            --bg: #09090b; --bg-subtle: #18181b; --border: #27272a;
            --text: #fafafa; --text-secondary: #a1a1aa; --text-tertiary: #52525b;
            --ok: #22c55e; --warn: #eab308; --danger: #ef4444;
        }
        body {
            font-family: -apple-system, 'Segoe UI', sans-serif;
            background: var(--bg); color: var(--text);
            min-height: 100vh; font-size: 14px;
            -webkit-font-smoothing: antialiased;
        }
        .mono { font-family: ui-monospace, 'SF Mono', monospace; }
        .container { max-width: 900px; margin: 0 auto; padding: 0 24px; }
        header {
            border-bottom: 1px solid var(--border); padding: 16px 0;
            position: sticky; top: 0; background: var(--bg); z-index: 100;
        }
        .header-inner { display: flex; justify-content: space-between; align-items: center; }
        .logo { display: flex; align-items: center; gap: 10px; font-weight: 600; font-size: 15px; }
        .logo-mark { width: 24px; height: 24px; background: var(--ok); border-radius: 6px; }
        .live-badge {
            display: flex; align-items: center; gap: 8px;
            background: var(--bg-subtle); border: 1px solid var(--border);
            padding: 8px 14px; border-radius: 20px; font-size: 13px; color: var(--text-secondary);
        }
        .live-dot {
            width: 8px; height: 8px; background: var(--ok); border-radius: 50%;
            animation: pulse 2s ease-in-out infinite;
        }
        @keyframes pulse { 0%, 100% { opacity: 1; } 50% { opacity: 0.4; } }

        .stats { display: grid; grid-template-columns: repeat(4, 1fr); gap: 16px; padding: 32px 0; }
        .stat {
            background: var(--bg-subtle); border: 1px solid var(--border);
            border-radius: 10px; padding: 20px;
        }
        .stat-label { color: var(--text-secondary); font-size: 12px; text-transform: uppercase; }
        .stat-value { font-size: 28px; font-weight: 600; margin-top: 8px; }

        .decisions { border-top: 1px solid var(--border); }
        .decision {
            display: grid; grid-template-columns: auto 1fr auto;
            gap: 16px; padding: 16px 0; border-bottom: 1px solid var(--border);
            align-items: center;
        }
        .decision.new { animation: slideIn 0.3s ease-out; }
        @keyframes slideIn { from { opacity: 0; transform: translateY(-8px); } to { opacity: 1; transform: translateY(0); } }
        .verdict { padding: 4px 10px; border-radius: 6px; font-size: 12px; font-weight: 600; }
        .verdict.LEARNING { background: var(--bg-subtle); color: var(--text-secondary); }
        .verdict.NORMAL { background: rgba(34,197,94,0.12); color: var(--ok); }
        .verdict.SUSPICIOUS { background: rgba(234,179,8,0.12); color: var(--warn); }
        .verdict.HIGH_RISK { background: rgba(239,68,68,0.12); color: var(--danger); }
        .decision-detail { color: var(--text-secondary); font-size: 13px; }
        .decision-score { font-size: 16px; font-weight: 600; text-align: right; }
        .empty { text-align: center; padding: 80px 24px; color: var(--text-tertiary); }
    </style>
</head>
<body>
    <header><div class="container header-inner">
        <div class="logo"><div class="logo-mark"></div>AccessGuard</div>
        <div class="live-badge"><span class="live-dot"></span> Live</div>
    </div></header>
    <main class="container">
        <div class="stats">
            <div class="stat"><div class="stat-label">Total Events</div><div class="stat-value" id="total">—</div></div>
            <div class="stat"><div class="stat-label">Suspicious</div><div class="stat-value" id="suspicious">—</div></div>
            <div class="stat"><div class="stat-label">High Risk</div><div class="stat-value" id="highrisk">—</div></div>
            <div class="stat"><div class="stat-label">Identity Risk</div><div class="stat-value" id="identity">—</div></div>
        </div>
        <div class="decisions" id="decisions">
            <div class="empty" id="empty">Waiting for events…</div>
        </div>
    </main>
    <script>
        async function refresh() {
            try {
                const res = await fetch('/api/dashboard');
                const data = await res.json();
                document.getElementById('total').textContent = data.total_events;
                document.getElementById('suspicious').textContent = data.suspicious;
                document.getElementById('highrisk').textContent = data.high_risk;
                document.getElementById('identity').textContent = data.identity_risk.toFixed(3);
                const list = document.getElementById('decisions');
                list.innerHTML = '';
                if (!data.decisions.length) {
                    list.innerHTML = '<div class="empty">Waiting for events…</div>';
                    return;
                }
                for (const d of data.decisions) list.appendChild(render(d));
            } catch (e) { /* retry on next tick */ }
        }
        function render(d) {
            const el = document.createElement('div');
            el.className = 'decision';
            el.innerHTML =
                '<span class="verdict ' + d.verdict + '">' + d.verdict + '</span>' +
                '<span class="decision-detail mono">#' + d.event_id + ' · ' + (d.attack_type || '') +
                    (d.reasons && d.reasons.length ? ' · ' + d.reasons.join(', ') : '') + '</span>' +
                '<span class="decision-score">' + d.risk_score.toFixed(3) + '</span>';
            return el;
        }
        refresh();
        setInterval(refresh, 10000);

        const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
        const ws = new WebSocket(proto + '//' + location.host + '/ws');
        ws.onmessage = (msg) => {
            const d = JSON.parse(msg.data);
            const list = document.getElementById('decisions');
            const empty = document.getElementById('empty');
            if (empty) empty.remove();
            const el = render(d);
            el.classList.add('new');
            list.prepend(el);
            while (list.children.length > 50) list.removeChild(list.lastChild);
        };
    </script>
</body>
</html>`

func dashboardPageHandler(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, dashboardPageHTML)
}
