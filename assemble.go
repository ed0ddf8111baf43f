package depresolve

// assembleResult walks the finished graph in a fixed order: start, every selector, every selected
// node, edges in consumer-first topological order, finish. It is translated line-for-line from
// DependencyGraphBuilder.java's assembleResult, including its queue-insertion-position trick for
// producing a deterministic reverse-topological-by-consumers order that tolerates cycles.
func assembleResult(rs *ResolveState, visitor DependencyGraphVisitor) error {
	root := rs.GetRoot()
	visitor.Start(root)

	for _, m := range rs.GetModules() {
		for _, s := range m.Selectors() {
			visitor.VisitSelector(s)
		}
	}

	for _, m := range rs.GetModules() {
		sel := m.Selected()
		if sel == nil {
			continue
		}
		for _, n := range sel.Nodes() {
			if n.IsSelected() {
				visitor.VisitNode(n)
			}
		}
	}

	queue := make([]*ComponentState, 0, len(rs.GetModules()))
	for _, m := range rs.GetModules() {
		if sel := m.Selected(); sel != nil {
			queue = append(queue, sel)
		}
	}

	for len(queue) > 0 {
		component := queue[0]
		switch component.VisitState() {
		case NotSeen:
			component.SetVisitState(Visiting)
			pos := 0
			for _, n := range component.Nodes() {
				if !n.IsSelected() {
					continue
				}
				for _, e := range n.IncomingEdges() {
					from := e.From().Component()
					if from.VisitState() == NotSeen {
						queue = insertAt(queue, pos, from)
						pos++
					}
				}
			}
			if pos == 0 {
				component.SetVisitState(Visited)
				queue = queue[1:]
				visitSelectedNodeEdges(visitor, component)
			}
		case Visiting:
			component.SetVisitState(Visited)
			queue = queue[1:]
			visitSelectedNodeEdges(visitor, component)
		case Visited:
			queue = queue[1:]
		}
	}

	visitor.Finish(root)
	return nil
}

func visitSelectedNodeEdges(visitor DependencyGraphVisitor, c *ComponentState) {
	for _, n := range c.Nodes() {
		if n.IsSelected() {
			visitor.VisitEdges(n)
		}
	}
}

func insertAt(queue []*ComponentState, pos int, c *ComponentState) []*ComponentState {
	queue = append(queue, nil)
	copy(queue[pos+1:], queue[pos:])
	queue[pos] = c
	return queue
}
