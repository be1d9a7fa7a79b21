package harness

// Page-side functions. Element functions take (el, arg), page functions
// take (arg).

const computedStyleJS = `(el, pseudo) => {
	const style = window.getComputedStyle(el, pseudo || null);
	const out = {};
	if (style) {
		for (let i = 0; i < style.length; i++) {
			const prop = style[i];
			out[prop] = style.getPropertyValue(prop);
		}
	}
	return out;
}`

const shadowHTMLJS = `(el, sentinel) => el.shadowRoot ? el.shadowRoot.innerHTML : sentinel`

const attributeJS = `(el, name) => el.hasAttribute(name) ? el.getAttribute(name) : null`

const injectStyleJS = `(block) => {
	let style = document.getElementById(block.id);
	if (!style) {
		style = document.createElement('style');
		style.id = block.id;
		document.head.appendChild(style);
	}
	style.textContent = block.css;
	return document.head.querySelectorAll('style#' + CSS.escape(block.id)).length;
}`
