package book

import "testing"

func TestLevelFIFO(t *testing.T) {
	lvl := newLevel(10000)
	lvl.enqueue(1, 10, 1, Day)
	lvl.enqueue(2, 20, 2, Day)
	lvl.enqueue(3, 30, 3, GTC)

	if lvl.TotalQty() != 60 || lvl.Count() != 3 {
		t.Fatalf("expected qty=60 count=3, got qty=%d count=%d", lvl.TotalQty(), lvl.Count())
	}
	if lvl.head.id != 1 || lvl.tail.id != 3 {
		t.Error("head should be oldest, tail newest")
	}
}

func TestLevelUnlinkMiddle(t *testing.T) {
	lvl := newLevel(10000)
	lvl.enqueue(1, 10, 1, Day)
	e := lvl.enqueue(2, 20, 2, Day)
	lvl.enqueue(3, 30, 3, Day)

	lvl.unlink(e)

	if lvl.TotalQty() != 40 || lvl.Count() != 2 {
		t.Fatalf("expected qty=40 count=2, got qty=%d count=%d", lvl.TotalQty(), lvl.Count())
	}
	if lvl.head.next != lvl.tail || lvl.tail.prev != lvl.head {
		t.Error("links not repaired after middle unlink")
	}
	if lvl.find(2) != nil {
		t.Error("unlinked entry still found")
	}
}

func TestLevelUnlinkEnds(t *testing.T) {
	lvl := newLevel(10000)
	a := lvl.enqueue(1, 10, 1, Day)
	lvl.enqueue(2, 20, 2, Day)
	c := lvl.enqueue(3, 30, 3, Day)

	lvl.unlink(a)
	if lvl.head.id != 2 {
		t.Error("head not advanced after unlinking oldest")
	}
	lvl.unlink(c)
	if lvl.tail.id != 2 {
		t.Error("tail not retreated after unlinking newest")
	}

	lvl.unlink(lvl.head)
	if !lvl.empty() || lvl.TotalQty() != 0 || lvl.Count() != 0 {
		t.Error("level should be empty")
	}
}

func TestLevelReduce(t *testing.T) {
	lvl := newLevel(10000)
	e := lvl.enqueue(1, 10, 1, Day)
	lvl.reduce(e, 4)
	if e.qty != 6 || lvl.TotalQty() != 6 {
		t.Errorf("expected qty=6 after reduce, got entry=%d level=%d", e.qty, lvl.TotalQty())
	}
}

func TestLevelView(t *testing.T) {
	lvl := newLevel(10050)
	lvl.enqueue(1, 10, 1, Day)
	lvl.enqueue(2, 5, 2, Day)
	v := lvl.view()
	if v.Px != 10050 || v.Qty != 15 || v.Orders != 2 {
		t.Errorf("unexpected view %+v", v)
	}
}
