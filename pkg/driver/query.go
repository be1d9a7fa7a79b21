package driver

// QueryAllJS resolves a Locator to an array of elements.
//
// CSS selectors are matched against the document and every open shadow root.
// When that finds nothing and the selector is "<host> <rest>", rest is
// matched inside the shadow roots of the hosts, which covers selectors like
// "md-dialog dialog > .container".
//
// Role locators use an implicit-role table and a simplified accessible name
// (aria-label, aria-labelledby, input value, flattened text including slotted
// content). Elements hidden from the accessibility tree are skipped.
//
// Backends without native role or shadow-piercing queries evaluate it with
// the JSON form of the Locator as its argument.
const QueryAllJS = `(loc) => {
	const roots = [];
	const collect = (root) => {
		roots.push(root);
		for (const el of root.querySelectorAll('*')) {
			if (el.shadowRoot) collect(el.shadowRoot);
		}
	};
	collect(document);

	const out = [];
	const seen = new Set();
	const add = (el) => {
		if (!seen.has(el)) {
			seen.add(el);
			out.push(el);
		}
	};

	if (!loc.role) {
		const sel = loc.css;
		for (const root of roots) {
			for (const el of root.querySelectorAll(sel)) add(el);
		}
		if (out.length === 0) {
			const m = sel.match(/^\s*(\S+)\s+(.+)$/);
			if (m) {
				for (const root of roots) {
					for (const host of root.querySelectorAll(m[1])) {
						if (!host.shadowRoot) continue;
						for (const el of host.shadowRoot.querySelectorAll(m[2])) add(el);
					}
				}
			}
		}
		return out;
	}

	const implicit = {
		button: 'button, input[type=button], input[type=submit], input[type=reset]',
		heading: 'h1, h2, h3, h4, h5, h6',
		link: 'a[href]',
		checkbox: 'input[type=checkbox]',
		radio: 'input[type=radio]',
		textbox: 'input:not([type]), input[type=text], input[type=email], textarea',
		dialog: 'dialog',
		list: 'ul, ol',
		listitem: 'li',
	};
	const selector = (implicit[loc.role] ? implicit[loc.role] + ', ' : '') + '[role="' + loc.role + '"]';

	const flatText = (node) => {
		if (node.nodeType === Node.TEXT_NODE) return node.textContent;
		if (node.nodeType !== Node.ELEMENT_NODE) return '';
		if (node.localName === 'style' || node.localName === 'script') return '';
		if (node.localName === 'slot') {
			return node.assignedNodes({ flatten: true }).map(flatText).join('');
		}
		const kids = node.shadowRoot ? node.shadowRoot.childNodes : node.childNodes;
		return Array.from(kids).map(flatText).join('');
	};
	const accessibleName = (el) => {
		const label = el.getAttribute('aria-label');
		if (label) return label.trim();
		const by = el.getAttribute('aria-labelledby');
		if (by) {
			const root = el.getRootNode();
			return by.split(/\s+/)
				.map((id) => root.getElementById ? root.getElementById(id) : document.getElementById(id))
				.filter(Boolean)
				.map(flatText)
				.join(' ')
				.replace(/\s+/g, ' ')
				.trim();
		}
		if (el.localName === 'input') return (el.value || '').trim();
		return flatText(el).replace(/\s+/g, ' ').trim();
	};
	const parentOf = (n) => {
		if (n.parentElement) return n.parentElement;
		const root = n.getRootNode();
		return root instanceof ShadowRoot ? root.host : null;
	};
	const hidden = (el) => {
		for (let n = el; n; n = parentOf(n)) {
			if (n.getAttribute('aria-hidden') === 'true') return true;
			if (getComputedStyle(n).display === 'none') return true;
		}
		return getComputedStyle(el).visibility === 'hidden';
	};
	const want = (loc.name || '').trim();
	const matches = (el) => {
		if (!want) return true;
		const name = accessibleName(el);
		return loc.exact ? name === want : name.toLowerCase().includes(want.toLowerCase());
	};

	for (const root of roots) {
		for (const el of root.querySelectorAll(selector)) {
			if (!hidden(el) && matches(el)) add(el);
		}
	}
	return out;
}`
