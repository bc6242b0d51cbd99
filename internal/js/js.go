package js

var SCROLL_TO_BOTTOM string = `
() => {
    window.scrollTo(0, document.body.scrollHeight);
}
`

var DOCUMENT_HEIGHT string = `
() => {
    return document.body.scrollHeight;
}
`

// Plain statement, it is installed with EvalOnNewDocument rather than called.
var HIDE_WEBDRIVER string = `
Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
`
