package syncer

// CaptureScript is evaluated in the left page. It observes user interaction
// and emits prefixed JSON lines via console.log, which the host forwards to
// the Manager. Navigation wipes injected state, so the Manager re-evaluates
// the whole script after every load; the installed guard makes that a no-op
// when the script is already present.
//
// Throttling invariant for the high-frequency sources (window scroll,
// element scroll, hover): at most one pending emission per source, and the
// most recent value wins. When several elements scroll inside one animation
// frame only the last-dispatched one is reported; that imprecision is a
// deliberate trade against per-frame traffic, not a bug.
const CaptureScript = `(() => {
	if (window.__twinSyncInstalled) { return; }
	window.__twinSyncInstalled = true;

	const PREFIX = '__twin_sync__';
	const send = (type, data) => {
		console.log(PREFIX + JSON.stringify({ type: type, data: data }));
	};

	// Walk up until an ancestor has a stable identity: id, then name
	// attribute, then tag qualified by nth-of-type against tag-matching
	// siblings. Best effort; the replay side swallows lookup misses.
	const buildSelector = (el) => {
		if (!el || !el.tagName || el === document.documentElement) { return ''; }
		if (el.id) { return '#' + el.id; }
		const tag = el.tagName.toLowerCase();
		const name = el.getAttribute && el.getAttribute('name');
		if (name) { return tag + '[name="' + name + '"]'; }
		const parent = el.parentElement;
		if (!parent) { return tag; }
		const siblings = Array.from(parent.children).filter((s) => s.tagName === el.tagName);
		let suffix = '';
		if (siblings.length > 1) {
			suffix = ':nth-of-type(' + (siblings.indexOf(el) + 1) + ')';
		}
		const parentSelector = buildSelector(parent);
		return parentSelector ? parentSelector + ' > ' + tag + suffix : tag + suffix;
	};

	let windowScrollTicking = false;
	window.addEventListener('scroll', () => {
		if (windowScrollTicking) { return; }
		windowScrollTicking = true;
		requestAnimationFrame(() => {
			windowScrollTicking = false;
			send('scroll', { scrollX: window.scrollX, scrollY: window.scrollY });
		});
	}, { passive: true });

	// Capture phase at the document so scrolls from any nested scrollable
	// element are observed. Document-level scrolls are the window listener's
	// job and are skipped here.
	let elementScrollTicking = false;
	let lastScrolledElement = null;
	document.addEventListener('scroll', (event) => {
		const target = event.target;
		if (!target || target === document || target === document.documentElement) { return; }
		lastScrolledElement = target;
		if (elementScrollTicking) { return; }
		elementScrollTicking = true;
		requestAnimationFrame(() => {
			elementScrollTicking = false;
			const el = lastScrolledElement;
			if (!el) { return; }
			const selector = buildSelector(el);
			if (!selector) { return; }
			send('elementscroll', { selector: selector, scrollLeft: el.scrollLeft, scrollTop: el.scrollTop });
		});
	}, { capture: true, passive: true });

	let hoverTicking = false;
	let lastHoverSelector = '';
	let pointerX = 0;
	let pointerY = 0;
	document.addEventListener('mousemove', (event) => {
		pointerX = event.clientX;
		pointerY = event.clientY;
		if (hoverTicking) { return; }
		hoverTicking = true;
		requestAnimationFrame(() => {
			hoverTicking = false;
			const el = document.elementFromPoint(pointerX, pointerY);
			if (!el) { return; }
			const selector = buildSelector(el);
			if (!selector || selector === lastHoverSelector) { return; }
			lastHoverSelector = selector;
			send('hover', { selector: selector });
		});
	}, { passive: true });

	// elementFromPoint rather than event.target, so clicks landing on
	// overlays resolve to the element the user actually saw.
	document.addEventListener('click', (event) => {
		const el = document.elementFromPoint(event.clientX, event.clientY) || event.target;
		const selector = buildSelector(el);
		if (!selector) { return; }
		let button = 'left';
		if (event.button === 1) { button = 'middle'; }
		if (event.button === 2) { button = 'right'; }
		send('click', { selector: selector, button: button });
	}, true);

	const isFormElement = (el) => {
		if (!el || !el.tagName) { return false; }
		const tag = el.tagName;
		return tag === 'INPUT' || tag === 'TEXTAREA' || tag === 'SELECT';
	};

	document.addEventListener('input', (event) => {
		const el = event.target;
		if (!el) { return; }
		const editable = el.isContentEditable === true;
		if (!isFormElement(el) && !editable) { return; }
		const selector = buildSelector(el);
		if (!selector) { return; }
		if (editable && !isFormElement(el)) {
			send('inputvalue', { selector: selector, textContent: el.textContent });
		} else {
			send('inputvalue', { selector: selector, value: el.value });
		}
	}, true);

	// Form targets are skipped: their text is already mirrored through the
	// input listener, and replaying the key events too would double-apply it.
	const sendKey = (type) => (event) => {
		if (event.repeat) { return; }
		const target = event.target;
		if (isFormElement(target) || (target && target.isContentEditable)) { return; }
		send(type, {
			key: event.key,
			code: event.code,
			keyCode: event.keyCode,
			shift: event.shiftKey,
			ctrl: event.ctrlKey,
			alt: event.altKey,
			meta: event.metaKey
		});
	};
	document.addEventListener('keydown', sendKey('keydown'), true);
	document.addEventListener('keyup', sendKey('keyup'), true);
})();`
