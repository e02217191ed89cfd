// internal/browser/session/scripts.go
package session

// Functions evaluated with runtime.callFunctionOn; `this` is the handle's object.
const (
	jsQuerySelectorAll = `function(sel) { return Array.from(this.querySelectorAll(sel)); }`

	jsQueryXPath = `function(expr) {
	const doc = this.ownerDocument || this;
	const res = doc.evaluate(expr, this, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	const out = [];
	for (let i = 0; i < res.snapshotLength; i++) {
		const n = res.snapshotItem(i);
		if (n.nodeType === Node.ELEMENT_NODE) out.push(n);
	}
	return out;
}`

	// Innermost elements whose composed text contains the needle.
	jsQueryText = `function(text) {
	const norm = s => s.replace(/\s+/g, ' ').trim();
	const want = norm(text);
	const skip = new Set(['SCRIPT', 'STYLE', 'TEMPLATE', 'NOSCRIPT']);
	const kids = n => {
		const light = Array.from(n.children || []);
		return n.shadowRoot ? Array.from(n.shadowRoot.children).concat(light) : light;
	};
	const cache = new Map();
	const textOf = el => {
		if (cache.has(el)) return cache.get(el);
		let s = '';
		const nodes = el.shadowRoot ? Array.from(el.shadowRoot.childNodes).concat(Array.from(el.childNodes)) : Array.from(el.childNodes);
		for (const c of nodes) {
			if (c.nodeType === Node.TEXT_NODE) s += c.nodeValue;
			else if (c.nodeType === Node.ELEMENT_NODE && !skip.has(c.tagName)) s += ' ' + textOf(c) + ' ';
		}
		cache.set(el, s);
		return s;
	};
	const out = [];
	const visit = el => {
		if (skip.has(el.tagName) || !norm(textOf(el)).includes(want)) return false;
		let inner = false;
		for (const c of kids(el)) if (visit(c)) inner = true;
		if (!inner) out.push(el);
		return true;
	};
	for (const c of kids(this)) visit(c);
	return out;
}`

	jsQueryPierce = `function(sel) {
	const seen = new Set();
	const out = [];
	const visit = root => {
		for (const el of root.querySelectorAll(sel)) {
			if (!seen.has(el)) { seen.add(el); out.push(el); }
		}
		for (const el of root.querySelectorAll('*')) {
			if (el.shadowRoot) visit(el.shadowRoot);
		}
	};
	if (this.shadowRoot) visit(this.shadowRoot);
	visit(this);
	return out;
}`

	jsShadowRoot = `function() { return this.shadowRoot || null; }`

	jsIsConnected = `function() { return this.isConnected; }`

	jsIsVisible = `function() {
	if (!this.isConnected) return false;
	const el = this.nodeType === Node.ELEMENT_NODE ? this : this.parentElement;
	if (!el) return false;
	const style = window.getComputedStyle(el);
	if (!style || style.visibility === 'hidden' || style.display === 'none') return false;
	const rect = el.getBoundingClientRect();
	return rect.width > 0 && rect.height > 0;
}`

	jsIntersectsViewport = `function(threshold) {
	return new Promise(resolve => {
		const observer = new IntersectionObserver(entries => {
			resolve(entries[0].intersectionRatio > threshold);
			observer.disconnect();
		});
		observer.observe(this);
	});
}`

	jsScrollIntoView = `function() { this.scrollIntoView({block: 'center', inline: 'center', behavior: 'instant'}); }`

	jsBoundingBox = `function() {
	const r = this.getBoundingClientRect();
	return {x: r.left, y: r.top, width: r.width, height: r.height};
}`

	jsFocus = `function() { this.focus(); }`

	// "type" for elements that accept keyboard text, "set" for everything else.
	jsFillMode = `function() {
	if (this.isContentEditable || this.tagName === 'TEXTAREA') return 'type';
	if (this.tagName !== 'INPUT') return 'set';
	const typeable = ['', 'text', 'password', 'email', 'tel', 'search', 'url', 'number'];
	return typeable.includes((this.getAttribute('type') || '').toLowerCase()) ? 'type' : 'set';
}`

	jsClearValue = `function() {
	if (this.isContentEditable) { this.textContent = ''; }
	else { this.value = ''; }
	this.dispatchEvent(new Event('input', {bubbles: true}));
}`

	jsSetValue = `function(value) {
	this.value = value;
	this.dispatchEvent(new Event('input', {bubbles: true}));
	this.dispatchEvent(new Event('change', {bubbles: true}));
}`

	jsScrollTo = `function(x, y) { this.scrollTo(x, y); }`
)
