package ui

// formPage is the single-page input collector. Plain HTML plus a little
// inline JS for dynamic product rows and status polling; no build step.
var formPage = []byte(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>snapcart</title>
<style>
  body { font-family: system-ui, sans-serif; background: #f7f9fc; max-width: 760px; margin: 2rem auto; }
  fieldset { border: 1px solid #d0d7de; border-radius: 6px; margin-bottom: 1rem; }
  label { display: inline-block; width: 10rem; text-align: right; margin-right: .5rem; }
  input, select { width: 16rem; padding: .25rem; margin: .2rem 0; }
  .row input { width: 10rem; }
  button { padding: .4rem 1rem; }
  #status { white-space: pre-line; font-family: monospace; background: #fff; border: 1px solid #d0d7de; padding: 1rem; min-height: 6rem; }
  .failed { color: #b42318; }
  .succeeded { color: #067647; }
</style>
</head>
<body>
<h2>snapcart checkout</h2>
<form id="checkout">
  <fieldset>
    <legend>Store account</legend>
    <div><label>Email</label><input name="email" type="email"></div>
    <div><label>Password</label><input name="password" type="password"></div>
  </fieldset>

  <fieldset>
    <legend>Products</legend>
    <div id="products">
      <div class="row">
        <input name="product_id" placeholder="Product ID">
        <input name="color" placeholder="Color">
        <input name="size" placeholder="Size">
      </div>
    </div>
    <button type="button" onclick="addRow()">Add product</button>
  </fieldset>

  <fieldset>
    <legend>Payment</legend>
    <div><label>Method</label>
      <select name="payment_method" id="method" onchange="toggleMethod()">
        <option value="paypal">PayPal account</option>
        <option value="card">Credit card</option>
      </select>
    </div>
    <div id="paypal-fields">
      <div><label>PayPal email</label><input name="paypal_email"></div>
      <div><label>PayPal password</label><input name="paypal_password" type="password"></div>
    </div>
    <div id="card-fields" style="display:none">
      <div><label>Card number</label><input name="card_number"></div>
      <div><label>Expiry</label><input name="card_expiry" placeholder="MM/YY"></div>
      <div><label>CVV</label><input name="card_cvv"></div>
      <div><label>First name</label><input name="first_name"></div>
      <div><label>Last name</label><input name="last_name"></div>
      <div><label>Address</label><input name="address"></div>
      <div><label>City</label><input name="city"></div>
      <div><label>State</label><input name="state"></div>
      <div><label>Zip code</label><input name="zip_code"></div>
      <div><label>Phone</label><input name="phone"></div>
    </div>
  </fieldset>

  <fieldset>
    <legend>Schedule (optional)</legend>
    <div><label>Checkout at</label><input name="schedule" placeholder="YYYY-MM-DD HH:MM:SS"></div>
  </fieldset>

  <button type="submit" id="go">Run checkout</button>
  <button type="button" id="stop" style="display:none" onclick="cancelRun()">Cancel</button>
</form>

<h3>Status</h3>
<div id="status">Idle.</div>

<script>
let runId = null;
let poller = null;

function addRow() {
  const row = document.querySelector('#products .row').cloneNode(true);
  row.querySelectorAll('input').forEach(i => i.value = '');
  document.getElementById('products').appendChild(row);
}

function toggleMethod() {
  const card = document.getElementById('method').value === 'card';
  document.getElementById('card-fields').style.display = card ? '' : 'none';
  document.getElementById('paypal-fields').style.display = card ? 'none' : '';
}

document.getElementById('checkout').addEventListener('submit', async (e) => {
  e.preventDefault();
  const resp = await fetch('/run', { method: 'POST', body: new URLSearchParams(new FormData(e.target)) });
  const body = await resp.json();
  if (!resp.ok) {
    setStatus(body.error, 'failed');
    return;
  }
  runId = body.run_id;
  document.getElementById('go').disabled = true;
  document.getElementById('stop').style.display = '';
  poller = setInterval(poll, 1000);
});

async function poll() {
  const resp = await fetch('/runs/' + runId + '/status');
  if (!resp.ok) return;
  const body = await resp.json();
  const lines = body.entries.map(e => '[' + e.state + '] ' + e.message);
  const el = document.getElementById('status');
  el.textContent = lines.join('\n') || 'Starting…';
  el.className = '';
  if (body.terminal) {
    el.className = body.state === 'Succeeded' ? 'succeeded' : 'failed';
    clearInterval(poller);
    document.getElementById('go').disabled = false;
    document.getElementById('stop').style.display = 'none';
  }
}

async function cancelRun() {
  if (runId) await fetch('/runs/' + runId + '/cancel', { method: 'POST' });
}

function setStatus(text, cls) {
  const el = document.getElementById('status');
  el.textContent = text;
  el.className = cls || '';
}
</script>
</body>
</html>
`)
