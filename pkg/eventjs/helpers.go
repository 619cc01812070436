package eventjs

const helpersJS = `
(function(){
  function field(obj, path) {
    if (!obj || typeof path !== "string" || path === "") return null;
    const parts = path.split(".");
    let cur = obj;
    for (const p of parts) {
      if (cur == null) return null;
      cur = cur[p];
    }
    return (cur === undefined) ? null : cur;
  }

  function isError(ev) {
    if (!ev) return false;
    return ev.level === "ERROR" || !!ev.hasError;
  }

  // state returns the lifecycle state carried in the details of progress
  // events, upper-cased, or null.
  function state(ev) {
    if (!ev || !ev.details) return null;
    const d = ev.details;
    const s = field(d, "update_progress.state") || field(d, "flow_progress.status") || field(d, "maintenance_progress.state");
    return (typeof s === "string") ? s.toUpperCase() : null;
  }

  globalThis.dlt = {
    field,
    isError,
    state,
  };
})();
`
