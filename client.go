package main

// Simple HTML client for playing in a browser
const lobbyHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Kanye Guesser</title>
<style>
  body { font-family: system-ui, -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; margin: 2rem; max-width: 40rem; }
  h1 { margin-bottom: 0.5rem; }
  #status { margin-bottom: 1rem; font-size: 0.9rem; color: #555; }
  #roster li { padding: 0.15rem 0; }
  #question { margin: 1rem 0; padding: 1rem; border: 1px solid #ddd; border-radius: 6px; }
  button { margin: 0.2rem 0.3rem 0.2rem 0; }
  .host-only { display: none; }
  .is-host .host-only { display: inline-block; }
</style>
</head>
<body>
<h1>Kanye Guesser</h1>
<div id="status">Connecting…</div>
<ul id="roster"></ul>
<div id="question"></div>
<div id="controls">
  <button id="start" class="host-only">Start round</button>
  <button id="reset" class="host-only">Reset game</button>
  <a id="qr" href="qr" target="_blank">QR</a>
</div>

<script>
(function() {
  const statusEl = document.getElementById('status');
  const rosterEl = document.getElementById('roster');
  const questionEl = document.getElementById('question');

  const proto = (location.protocol === 'https:') ? 'wss://' : 'ws://';
  const wsPath = location.pathname.replace(/\/$/, '') + '/ws';
  const ws = new WebSocket(proto + location.host + wsPath);

  function send(msg) { ws.send(JSON.stringify(msg)); }

  function renderRoster(players, hostId) {
    rosterEl.innerHTML = '';
    (players || []).forEach(function(p) {
      const li = document.createElement('li');
      li.textContent = p.name + ' — ' + p.score + ' pts (' + p.status + ')' +
        (p.playerId === hostId ? ' ♛' : '');
      rosterEl.appendChild(li);
    });
  }

  function renderQuestion(q) {
    questionEl.innerHTML = '';
    if (!q) { return; }

    const title = document.createElement('h3');
    title.textContent = q.title;
    questionEl.appendChild(title);
    if (q.content) {
      const content = document.createElement('p');
      content.textContent = q.content;
      questionEl.appendChild(content);
    }

    if (q.type === 'multiple_choice') {
      (q.choices || []).forEach(function(c) {
        const b = document.createElement('button');
        b.textContent = c.text;
        b.onclick = function() { send({type: 'submit_answer', choiceId: c.id}); };
        questionEl.appendChild(b);
      });
    } else if (q.type === 'true_false') {
      [true, false].forEach(function(v) {
        const b = document.createElement('button');
        b.textContent = v ? 'True' : 'False';
        b.onclick = function() { send({type: 'submit_answer', value: v}); };
        questionEl.appendChild(b);
      });
    } else if (q.type === 'numeric') {
      const input = document.createElement('input');
      input.type = 'number';
      if (q.min !== undefined) { input.min = q.min; }
      if (q.max !== undefined) { input.max = q.max; }
      const b = document.createElement('button');
      b.textContent = 'Submit';
      b.onclick = function() { send({type: 'submit_answer', number: Number(input.value)}); };
      questionEl.appendChild(input);
      questionEl.appendChild(b);
    } else if (q.type === 'ordered_list') {
      const order = [];
      (q.items || []).forEach(function(it) {
        const b = document.createElement('button');
        b.textContent = it.text;
        b.onclick = function() {
          order.push(it.id);
          b.disabled = true;
          if (order.length === q.items.length) {
            send({type: 'submit_answer', order: order});
          }
        };
        questionEl.appendChild(b);
      });
    } else {
      const input = document.createElement('input');
      const b = document.createElement('button');
      b.textContent = 'Guess';
      b.onclick = function() {
        send({type: 'submit_answer', text: input.value});
        input.value = '';
      };
      questionEl.appendChild(input);
      questionEl.appendChild(b);
      if (q.type === 'multi_entry') {
        const hint = document.createElement('p');
        hint.textContent = 'Find ' + q.totalAnswers + ' answers in at most ' + q.maxGuesses + ' guesses.';
        questionEl.appendChild(hint);
      }
    }
  }

  ws.onopen = function() {
    statusEl.textContent = 'Connected.';
    const name = prompt('Enter your name:') || '';
    send({type: 'join', name: name});
  };

  ws.onmessage = function(event) {
    let msg;
    try { msg = JSON.parse(event.data); } catch (e) { return; }

    if (msg.type === 'session_info') {
      document.body.classList.toggle('is-host', !!msg.isHost);
      renderRoster(msg.players, msg.hostPlayerId);
      renderQuestion(msg.question);
      statusEl.textContent = 'Phase: ' + msg.phase;
    } else if (msg.type === 'roster') {
      renderRoster(msg.players, msg.hostPlayerId);
    } else if (msg.type === 'round_started') {
      statusEl.textContent = 'Round live — ' + Math.round(msg.durationMs / 1000) + 's';
      renderQuestion(msg.question);
    } else if (msg.type === 'round_summary') {
      renderQuestion(null);
      renderRoster(msg.players);
      statusEl.textContent = 'Round over. Answer: ' + JSON.stringify(msg.summary.question.answers ||
        msg.summary.question.correctChoiceId || msg.summary.question.correctValue ||
        msg.summary.question.correctOrder);
    } else if (msg.type === 'win') {
      statusEl.textContent = msg.name + ' wins with ' + msg.score + ' points!';
      renderQuestion(null);
    } else if (msg.type === 'game_reset') {
      statusEl.textContent = 'New game. Waiting for the host…';
      renderQuestion(null);
    } else if (msg.type === 'error') {
      statusEl.textContent = msg.message;
    }
  };

  ws.onclose = function() { statusEl.textContent = 'Disconnected.'; };
  ws.onerror = function() { statusEl.textContent = 'Error with WebSocket.'; };

  document.getElementById('start').onclick = function() { send({type: 'start_round'}); };
  document.getElementById('reset').onclick = function() { send({type: 'reset_game'}); };
})();
</script>
</body>
</html>
`
