package portal

import "fmt"

// The time clock system renders its menu and forms inside nested frames.
// Scripts below search the top document and every same-origin frame.
const allDocumentsJS = `function allDocs(root) {
	var docs = [root];
	var frames = root.querySelectorAll('frame, iframe');
	for (var i = 0; i < frames.length; i++) {
		try {
			var d = frames[i].contentDocument;
			if (d) { docs = docs.concat(allDocs(d)); }
		} catch (e) {}
	}
	return docs;
}`

// revealMenuScript hovers the folder entry labelled folder and forces the
// submenu with id submenuID to be displayed. Evaluates to true once done.
func revealMenuScript(folder, submenuID string) string {
	return fmt.Sprintf(`(function() {
	%s
	var docs = allDocs(document);
	for (var i = 0; i < docs.length; i++) {
		var doc = docs[i];
		var spans = doc.querySelectorAll('span.ThemeOfficeMainFolderText');
		for (var j = 0; j < spans.length; j++) {
			if ((spans[j].textContent || '').indexOf(%q) === -1) { continue; }
			var target = spans[j].closest('td') || spans[j];
			var view = doc.defaultView || window;
			target.dispatchEvent(new view.MouseEvent('mouseover', {bubbles: true}));
			var submenu = doc.getElementById(%q);
			if (!submenu) { return false; }
			submenu.style.visibility = 'visible';
			submenu.style.display = 'block';
			submenu.style.zIndex = '10000';
			return true;
		}
	}
	return false;
})()`, allDocumentsJS, folder, submenuID)
}

// clickScript clicks the first element matching selector whose text or
// value contains label (any element when label is empty). Evaluates to true
// once an element was clicked.
func clickScript(selector, label string) string {
	return fmt.Sprintf(`(function() {
	%s
	var label = %q;
	var docs = allDocs(document);
	for (var i = 0; i < docs.length; i++) {
		var els = docs[i].querySelectorAll(%q);
		for (var j = 0; j < els.length; j++) {
			var el = els[j];
			var text = (el.innerText || el.textContent || el.value || '').trim();
			if (label === '' || text.indexOf(label) !== -1) {
				el.click();
				return true;
			}
		}
	}
	return false;
})()`, allDocumentsJS, label, selector)
}

// existsScript is clickScript without the click
func existsScript(selector, label string) string {
	return fmt.Sprintf(`(function() {
	%s
	var label = %q;
	var docs = allDocs(document);
	for (var i = 0; i < docs.length; i++) {
		var els = docs[i].querySelectorAll(%q);
		for (var j = 0; j < els.length; j++) {
			var text = (els[j].innerText || els[j].textContent || els[j].value || '').trim();
			if (label === '' || text.indexOf(label) !== -1) { return true; }
		}
	}
	return false;
})()`, allDocumentsJS, label, selector)
}
